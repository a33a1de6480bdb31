// Package evm implements the registry client over the HealthFactRegistry contract.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/metrics"
	"github.com/totegamma/factguard/internal/usecase"
)

var tracer = otel.Tracer("evm")

const transportName = "evm"

// Backend is satisfied by *ethclient.Client.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type Client struct {
	backend        Backend
	contract       *bind.BoundContract
	address        common.Address
	chainID        *big.Int
	key            *ecdsa.PrivateKey
	cache          *EntryCache
	metrics        *metrics.Metrics
	confirmTimeout time.Duration

	// one transaction in flight at a time; each is confirmed before the next is sent
	submit sync.Mutex
}

var _ usecase.RegistryAdmin = (*Client)(nil)

type Option func(*Client)

func WithCache(cache *EntryCache) Option {
	return func(c *Client) { c.cache = cache }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithConfirmTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.confirmTimeout = d
		}
	}
}

func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, domain.Transport("dial", err)
	}
	return client, nil
}

// NewClient binds the contract at address. key may be nil for a read-only client.
func NewClient(backend Backend, address common.Address, chainID uint64, key *ecdsa.PrivateKey, opts ...Option) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(RegistryABI))
	if err != nil {
		return nil, err
	}

	c := &Client{
		backend:        backend,
		contract:       bind.NewBoundContract(address, parsed, backend, backend, backend),
		address:        address,
		chainID:        new(big.Int).SetUint64(chainID),
		key:            key,
		confirmTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) call(ctx context.Context, op, method string, args ...any) ([]any, error) {
	start := time.Now()
	defer func() { c.metrics.ObserveClient(transportName, op, time.Since(start)) }()

	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func (c *Client) transact(ctx context.Context, op, method string, args ...any) (domain.Receipt, error) {
	if c.key == nil {
		return domain.Receipt{}, domain.NewError(domain.CodeUnauthorized, "no signing key configured")
	}

	c.submit.Lock()
	defer c.submit.Unlock()

	start := time.Now()
	defer func() { c.metrics.ObserveClient(transportName, op, time.Since(start)) }()

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return domain.Receipt{}, err
	}
	opts.Context = ctx

	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		return domain.Receipt{}, classify(op, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.backend, tx)
	if err != nil {
		return domain.Receipt{TxRef: tx.Hash().Hex()}, domain.Transport(op, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.Receipt{}, fmt.Errorf("%s: transaction %s reverted", op, tx.Hash().Hex())
	}

	return domain.Receipt{
		TxRef: tx.Hash().Hex(),
		Block: receipt.BlockNumber.Uint64(),
	}, nil
}

func (c *Client) Exists(ctx context.Context, hash factguard.FactHash) (bool, factguard.Status, error) {
	ctx, span := tracer.Start(ctx, "EVM.Client.Exists")
	defer span.End()

	out, err := c.call(ctx, "exists", "checkFactExists", [32]byte(hash))
	if err != nil {
		span.RecordError(err)
		return false, 0, err
	}
	if len(out) != 2 {
		return false, 0, fmt.Errorf("checkFactExists: unexpected output arity %d", len(out))
	}
	exists, _ := out[0].(bool)
	status, _ := out[1].(uint8)
	return exists, factguard.Status(status), nil
}

func (c *Client) Register(ctx context.Context, reg domain.Registration) (domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "EVM.Client.Register")
	defer span.End()

	receipt, err := c.transact(ctx, "register", "registerFact",
		[32]byte(reg.FactHash),
		reg.FactID,
		uint8(reg.Verdict),
		uint8(reg.Severity),
		uint64(reg.IssuedAt.Unix()),
		uint64(reg.LastReviewedAt.Unix()),
		reg.Version,
	)
	if err != nil {
		span.RecordError(err)
	}
	return receipt, err
}

func (c *Client) LookupByHash(ctx context.Context, hash factguard.FactHash) (domain.RegistryEntry, error) {
	ctx, span := tracer.Start(ctx, "EVM.Client.LookupByHash")
	defer span.End()

	if c.cache != nil {
		if entry, ok := c.cache.Get(hash); ok {
			return entry, nil
		}
	}

	out, err := c.call(ctx, "lookup_by_hash", "getFactByHash", [32]byte(hash))
	if err != nil {
		span.RecordError(err)
		return domain.RegistryEntry{}, err
	}
	entry, err := decodeEntry(out)
	if err != nil {
		return domain.RegistryEntry{}, err
	}
	if entry.FactHash != hash {
		return domain.RegistryEntry{}, domain.NewError(domain.CodeNotFound, "fact %s not found", hash.Hex())
	}
	if c.cache != nil {
		c.cache.Put(entry)
	}
	return entry, nil
}

func (c *Client) LookupByID(ctx context.Context, factID string) (domain.RegistryEntry, error) {
	ctx, span := tracer.Start(ctx, "EVM.Client.LookupByID")
	defer span.End()

	out, err := c.call(ctx, "lookup_by_id", "getFactById", factID)
	if err != nil {
		span.RecordError(err)
		return domain.RegistryEntry{}, err
	}
	entry, err := decodeEntry(out)
	if err != nil {
		return domain.RegistryEntry{}, err
	}
	if entry.FactID != factID {
		return domain.RegistryEntry{}, domain.NewError(domain.CodeNotFound, "fact id %q not found", factID)
	}
	return entry, nil
}

func (c *Client) UpdateStatus(ctx context.Context, hash factguard.FactHash, status factguard.Status) (domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "EVM.Client.UpdateStatus")
	defer span.End()

	if c.cache != nil {
		defer c.cache.Invalidate(hash)
	}

	receipt, err := c.transact(ctx, "update_status", "updateFactStatus", [32]byte(hash), uint8(status))
	if err != nil {
		span.RecordError(err)
	}
	return receipt, err
}

func (c *Client) TransferWriter(ctx context.Context, next factguard.Identity) (domain.Receipt, error) {
	ctx, span := tracer.Start(ctx, "EVM.Client.TransferWriter")
	defer span.End()

	if factguard.IsNullIdentity(next) {
		return domain.Receipt{}, domain.NewError(domain.CodeInvalidIdentity, "null identity")
	}
	receipt, err := c.transact(ctx, "transfer_writer", "transferOwnership", next)
	if err != nil {
		span.RecordError(err)
	}
	return receipt, err
}

func (c *Client) Stats(ctx context.Context) (domain.Stats, error) {
	ctx, span := tracer.Start(ctx, "EVM.Client.Stats")
	defer span.End()

	total, err := c.call(ctx, "stats", "totalFacts")
	if err != nil {
		span.RecordError(err)
		return domain.Stats{}, err
	}
	owner, err := c.call(ctx, "stats", "owner")
	if err != nil {
		span.RecordError(err)
		return domain.Stats{}, err
	}

	if len(total) != 1 || len(owner) != 1 {
		return domain.Stats{}, fmt.Errorf("unexpected stats output arity %d/%d", len(total), len(owner))
	}

	stats := domain.Stats{}
	if n, ok := total[0].(*big.Int); ok {
		stats.TotalFacts = n.Uint64()
	}
	if addr, ok := owner[0].(common.Address); ok {
		stats.Writer = addr
	}
	return stats, nil
}

// decodeEntry converts the flat getFactBy* outputs into a registry entry.
// The contract answers unknown keys with a zeroed struct, which is reported as not found.
func decodeEntry(out []any) (domain.RegistryEntry, error) {
	if len(out) != 11 {
		return domain.RegistryEntry{}, fmt.Errorf("unexpected fact output arity %d", len(out))
	}

	hash, ok1 := out[0].([32]byte)
	factID, ok2 := out[1].(string)
	verdict, ok3 := out[2].(uint8)
	severity, ok4 := out[3].(uint8)
	issuedAt, ok5 := out[4].(uint64)
	reviewedAt, ok6 := out[5].(uint64)
	version, ok7 := out[6].(uint64)
	status, ok8 := out[7].(uint8)
	addedBy, ok9 := out[8].(common.Address)
	sequence, ok10 := out[9].(*big.Int)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8 && ok9 && ok10) {
		return domain.RegistryEntry{}, fmt.Errorf("unexpected fact output types")
	}
	if hash == [32]byte{} {
		return domain.RegistryEntry{}, domain.NewError(domain.CodeNotFound, "fact not found")
	}

	return domain.RegistryEntry{
		FactHash:       factguard.FactHash(hash),
		FactID:         factID,
		Verdict:        factguard.Verdict(verdict),
		Severity:       factguard.Severity(severity),
		IssuedAt:       time.Unix(int64(issuedAt), 0).UTC(),
		LastReviewedAt: time.Unix(int64(reviewedAt), 0).UTC(),
		Version:        version,
		Status:         factguard.Status(status),
		Registrant:     addedBy,
		Sequence:       sequence.Uint64(),
	}, nil
}
