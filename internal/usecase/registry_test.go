package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/infra/repository"
	"github.com/totegamma/factguard/internal/usecase"
)

var (
	writerID   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	strangerID = common.HexToAddress("0x2000000000000000000000000000000000000002")
	nextID     = common.HexToAddress("0x3000000000000000000000000000000000000003")
	fixedNow   = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func hashOf(b byte) factguard.FactHash {
	var h factguard.FactHash
	h[0] = b
	h[31] = b
	return h
}

func registration(hash factguard.FactHash, id string, version uint64) domain.Registration {
	return domain.Registration{
		FactHash:       hash,
		FactID:         id,
		Verdict:        factguard.VerdictFalse,
		Severity:       factguard.SeverityHigh,
		IssuedAt:       time.Date(2025, 1, 29, 10, 0, 0, 0, time.UTC),
		LastReviewedAt: time.Date(2025, 1, 29, 10, 0, 0, 0, time.UTC),
		Version:        version,
	}
}

type RegistrySuite struct {
	suite.Suite
	ctx       context.Context
	store     *repository.MemoryRegistryRepository
	publisher *recordingPublisher
	registry  *usecase.Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.store = repository.NewMemoryRegistryRepository()
	s.publisher = &recordingPublisher{}
	s.registry = usecase.NewRegistry(s.store,
		usecase.WithPublisher(s.publisher),
		usecase.WithClock(func() time.Time { return fixedNow }),
		usecase.WithClockSkew(time.Minute),
	)
	writer, err := s.registry.Bootstrap(s.ctx, writerID)
	s.Require().NoError(err)
	s.Require().Equal(writerID, writer)
}

func (s *RegistrySuite) TestBootstrapKeepsExistingWriter() {
	writer, err := s.registry.Bootstrap(s.ctx, strangerID)
	s.Require().NoError(err)
	s.Equal(writerID, writer)
}

func (s *RegistrySuite) TestRegister() {
	s.Run("fresh hash becomes active", func() {
		entry, err := s.registry.Register(s.ctx, writerID, registration(hashOf(1), "f-1", 1))
		s.Require().NoError(err)
		s.Equal(factguard.StatusActive, entry.Status)
		s.Equal(uint64(1), entry.Sequence)
		s.Equal(writerID, entry.Registrant)
		s.Equal(fixedNow, entry.RegisteredAt)

		exists, status, err := s.registry.Exists(s.ctx, hashOf(1))
		s.Require().NoError(err)
		s.True(exists)
		s.Equal(factguard.StatusActive, status)
		s.Equal([]domain.EventType{domain.EventFactRegistered}, s.publisher.types())

		registered := s.publisher.events[0].Registered
		s.Require().NotNil(registered)
		s.Equal(domain.FactRegistered{
			FactHash: hashOf(1),
			FactID:   "f-1",
			Verdict:  factguard.VerdictFalse,
			Severity: factguard.SeverityHigh,
			IssuedAt: time.Date(2025, 1, 29, 10, 0, 0, 0, time.UTC),
			Version:  1,
			Writer:   writerID,
			Sequence: 1,
		}, *registered)

		payload, err := json.Marshal(s.publisher.events[0])
		s.Require().NoError(err)
		s.Contains(string(payload), `"issuedAt":"2025-01-29T10:00:00Z"`)
	})

	s.Run("duplicate hash is rejected", func() {
		_, err := s.registry.Register(s.ctx, writerID, registration(hashOf(1), "f-1", 1))
		s.Require().ErrorIs(err, domain.ErrAlreadyExists)
	})

	s.Run("active fact id cannot be rebound", func() {
		_, err := s.registry.Register(s.ctx, writerID, registration(hashOf(2), "f-1", 2))
		s.Require().ErrorIs(err, domain.ErrIdentifierConflict)
	})

	s.Run("non writer is rejected", func() {
		_, err := s.registry.Register(s.ctx, strangerID, registration(hashOf(3), "f-3", 1))
		s.Require().ErrorIs(err, domain.ErrUnauthorized)
	})

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), count)
}

func (s *RegistrySuite) TestRegisterValidation() {
	future := registration(hashOf(4), "f-4", 1)
	future.IssuedAt = fixedNow.Add(2 * time.Minute)
	future.LastReviewedAt = future.IssuedAt
	_, err := s.registry.Register(s.ctx, writerID, future)
	s.ErrorIs(err, domain.ErrInvalidTimestamp)

	withinSkew := registration(hashOf(5), "f-5", 1)
	withinSkew.IssuedAt = fixedNow.Add(30 * time.Second)
	withinSkew.LastReviewedAt = withinSkew.IssuedAt
	_, err = s.registry.Register(s.ctx, writerID, withinSkew)
	s.NoError(err)

	reviewedBeforeIssued := registration(hashOf(6), "f-6", 1)
	reviewedBeforeIssued.LastReviewedAt = reviewedBeforeIssued.IssuedAt.Add(-time.Hour)
	_, err = s.registry.Register(s.ctx, writerID, reviewedBeforeIssued)
	s.ErrorIs(err, domain.ErrInvalidTimestamp)

	_, err = s.registry.Register(s.ctx, writerID, registration(hashOf(7), "f-7", 0))
	s.ErrorIs(err, domain.ErrInvalidVersion)

	_, err = s.registry.Register(s.ctx, writerID, registration(factguard.FactHash{}, "f-8", 1))
	s.ErrorIs(err, domain.ErrCanonicalization)
}

func (s *RegistrySuite) TestSupersedeAndRebind() {
	_, err := s.registry.Register(s.ctx, writerID, registration(hashOf(1), "f-1", 2))
	s.Require().NoError(err)

	_, err = s.registry.UpdateStatus(s.ctx, writerID, hashOf(1), factguard.StatusSuperseded)
	s.Require().NoError(err)

	_, err = s.registry.Register(s.ctx, writerID, registration(hashOf(2), "f-1", 1))
	s.Require().ErrorIs(err, domain.ErrInvalidVersion)

	entry, err := s.registry.Register(s.ctx, writerID, registration(hashOf(2), "f-1", 3))
	s.Require().NoError(err)
	s.Equal(uint64(2), entry.Sequence)

	byID, err := s.registry.LookupByID(s.ctx, "f-1")
	s.Require().NoError(err)
	s.Equal(hashOf(2), byID.FactHash)

	old, err := s.registry.LookupByHash(s.ctx, hashOf(1))
	s.Require().NoError(err)
	s.Equal(factguard.StatusSuperseded, old.Status)

	s.Equal([]domain.EventType{
		domain.EventFactRegistered,
		domain.EventFactStatusChanged,
		domain.EventFactRegistered,
	}, s.publisher.types())
}

func (s *RegistrySuite) TestUpdateStatus() {
	_, err := s.registry.Register(s.ctx, writerID, registration(hashOf(1), "f-1", 1))
	s.Require().NoError(err)

	_, err = s.registry.UpdateStatus(s.ctx, writerID, hashOf(1), factguard.StatusActive)
	s.ErrorIs(err, domain.ErrNoOp)

	_, err = s.registry.UpdateStatus(s.ctx, strangerID, hashOf(1), factguard.StatusWithdrawn)
	s.ErrorIs(err, domain.ErrUnauthorized)

	_, err = s.registry.UpdateStatus(s.ctx, writerID, hashOf(9), factguard.StatusWithdrawn)
	s.ErrorIs(err, domain.ErrNotFound)

	entry, err := s.registry.UpdateStatus(s.ctx, writerID, hashOf(1), factguard.StatusWithdrawn)
	s.Require().NoError(err)
	s.Equal(factguard.StatusWithdrawn, entry.Status)

	_, err = s.registry.UpdateStatus(s.ctx, writerID, hashOf(1), factguard.StatusWithdrawn)
	s.ErrorIs(err, domain.ErrNoOp)

	_, err = s.registry.UpdateStatus(s.ctx, writerID, hashOf(1), factguard.StatusActive)
	s.ErrorIs(err, domain.ErrInvalidTransition)

	_, err = s.registry.UpdateStatus(s.ctx, writerID, hashOf(1), factguard.StatusSuperseded)
	s.ErrorIs(err, domain.ErrInvalidTransition)
}

func (s *RegistrySuite) TestTransferWriter() {
	err := s.registry.TransferWriter(s.ctx, writerID, factguard.Identity{})
	s.ErrorIs(err, domain.ErrInvalidIdentity)

	err = s.registry.TransferWriter(s.ctx, writerID, writerID)
	s.ErrorIs(err, domain.ErrInvalidIdentity)

	err = s.registry.TransferWriter(s.ctx, strangerID, nextID)
	s.ErrorIs(err, domain.ErrUnauthorized)

	s.Require().NoError(s.registry.TransferWriter(s.ctx, writerID, nextID))

	_, err = s.registry.Register(s.ctx, writerID, registration(hashOf(1), "f-1", 1))
	s.ErrorIs(err, domain.ErrUnauthorized)

	_, err = s.registry.Register(s.ctx, nextID, registration(hashOf(1), "f-1", 1))
	s.NoError(err)

	stats, err := s.registry.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(nextID, stats.Writer)
	s.Equal(uint64(1), stats.TotalFacts)
}

func (s *RegistrySuite) TestPublishFailureDoesNotUndoMutation() {
	s.publisher.err = errors.New("broker down")

	_, err := s.registry.Register(s.ctx, writerID, registration(hashOf(1), "f-1", 1))
	s.Require().NoError(err)

	exists, _, err := s.registry.Exists(s.ctx, hashOf(1))
	s.Require().NoError(err)
	s.True(exists)
}

func (s *RegistrySuite) TestConcurrentRegisterSameHash() {
	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.registry.Register(s.ctx, writerID, registration(hashOf(1), "f-1", 1))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, domain.ErrAlreadyExists)
	}
	s.Equal(1, succeeded)
}

func (s *RegistrySuite) TestLocalClient() {
	client := usecase.NewLocalClient(s.registry, writerID)

	receipt, err := client.Register(s.ctx, registration(hashOf(1), "f-1", 1))
	s.Require().NoError(err)
	s.Equal("local:1", receipt.TxRef)

	_, err = client.UpdateStatus(s.ctx, hashOf(1), factguard.StatusWithdrawn)
	s.Require().NoError(err)

	exists, status, err := client.Exists(s.ctx, hashOf(1))
	s.Require().NoError(err)
	s.True(exists)
	s.Equal(factguard.StatusWithdrawn, status)

	exists, _, err = client.Exists(s.ctx, hashOf(2))
	s.Require().NoError(err)
	s.False(exists)
}
