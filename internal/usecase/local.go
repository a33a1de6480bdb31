package usecase

import (
	"context"
	"fmt"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

// LocalClient binds a caller identity to an in-process Registry.
type LocalClient struct {
	registry *Registry
	caller   factguard.Identity
}

var _ RegistryAdmin = (*LocalClient)(nil)

func NewLocalClient(registry *Registry, caller factguard.Identity) *LocalClient {
	return &LocalClient{registry: registry, caller: caller}
}

func localReceipt(sequence uint64) domain.Receipt {
	return domain.Receipt{TxRef: fmt.Sprintf("local:%d", sequence), Sequence: sequence}
}

func (c *LocalClient) Exists(ctx context.Context, hash factguard.FactHash) (bool, factguard.Status, error) {
	return c.registry.Exists(ctx, hash)
}

func (c *LocalClient) Register(ctx context.Context, reg domain.Registration) (domain.Receipt, error) {
	entry, err := c.registry.Register(ctx, c.caller, reg)
	if err != nil {
		return domain.Receipt{}, err
	}
	return localReceipt(entry.Sequence), nil
}

func (c *LocalClient) LookupByHash(ctx context.Context, hash factguard.FactHash) (domain.RegistryEntry, error) {
	return c.registry.LookupByHash(ctx, hash)
}

func (c *LocalClient) LookupByID(ctx context.Context, factID string) (domain.RegistryEntry, error) {
	return c.registry.LookupByID(ctx, factID)
}

func (c *LocalClient) UpdateStatus(ctx context.Context, hash factguard.FactHash, status factguard.Status) (domain.Receipt, error) {
	entry, err := c.registry.UpdateStatus(ctx, c.caller, hash, status)
	if err != nil {
		return domain.Receipt{}, err
	}
	return localReceipt(entry.Sequence), nil
}

func (c *LocalClient) TransferWriter(ctx context.Context, next factguard.Identity) (domain.Receipt, error) {
	if err := c.registry.TransferWriter(ctx, c.caller, next); err != nil {
		return domain.Receipt{}, err
	}
	return domain.Receipt{TxRef: "local:writer"}, nil
}

func (c *LocalClient) Stats(ctx context.Context) (domain.Stats, error) {
	return c.registry.Stats(ctx)
}
