package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

func seededClient(t *testing.T, records ...factguard.FactRecord) (*fakeRegistryClient, []factguard.FactHash) {
	t.Helper()
	client := newFakeRegistryClient()
	hashes := make([]factguard.FactHash, 0, len(records))
	for _, record := range records {
		hash := mustHash(t, record)
		client.commit(domain.RegistrationFor(hash, record))
		hashes = append(hashes, hash)
	}
	return client, hashes
}

func TestVerifyActiveFact(t *testing.T) {
	client, hashes := seededClient(t, testRecord("f-1", 1))
	uc := NewVerificationUsecase(client, nil, 0)

	outcome := uc.Verify(context.Background(), domain.NormalizedClaim{FactHash: hashes[0]})
	require.True(t, outcome.Verified())
	assert.Equal(t, "f-1", outcome.FactID)
	assert.Equal(t, factguard.VerdictFalse, outcome.Verdict)
	assert.Equal(t, factguard.SeverityHigh, outcome.Severity)

	byID := uc.Verify(context.Background(), domain.NormalizedClaim{FactID: "f-1"})
	assert.True(t, byID.Verified())
	assert.Equal(t, hashes[0], byID.FactHash)
}

func TestVerifyWithdrawnFact(t *testing.T) {
	client, hashes := seededClient(t, testRecord("f-1", 1))
	entry := client.entries[hashes[0]]
	entry.Status = factguard.StatusWithdrawn
	client.entries[hashes[0]] = entry

	uc := NewVerificationUsecase(client, nil, 0)
	outcome := uc.Verify(context.Background(), domain.NormalizedClaim{FactHash: hashes[0]})
	assert.False(t, outcome.Verified())
	assert.Equal(t, domain.OutcomeNoAuthoritativeMatch, outcome.Kind)
	assert.Equal(t, "fact is withdrawn", outcome.Reason)
	assert.Equal(t, factguard.StatusWithdrawn, outcome.Status)
}

func TestVerifyHashTakesPrecedence(t *testing.T) {
	client, hashes := seededClient(t, testRecord("f-1", 1), testRecord("f-2", 1))
	entry := client.entries[hashes[1]]
	entry.Status = factguard.StatusSuperseded
	client.entries[hashes[1]] = entry

	uc := NewVerificationUsecase(client, nil, 0)

	outcome := uc.Verify(context.Background(), domain.NormalizedClaim{FactHash: hashes[0], FactID: "f-1"})
	assert.True(t, outcome.Verified())

	mismatch := uc.Verify(context.Background(), domain.NormalizedClaim{FactHash: hashes[0], FactID: "f-2"})
	assert.False(t, mismatch.Verified())
	assert.Equal(t, domain.ReasonIDMismatch, mismatch.Reason)
}

func TestVerifyUnknownAndUnresolved(t *testing.T) {
	client := newFakeRegistryClient()
	uc := NewVerificationUsecase(client, nil, 0)

	var unknown factguard.FactHash
	unknown[0] = 0xff
	outcome := uc.Verify(context.Background(), domain.NormalizedClaim{FactHash: unknown})
	assert.Equal(t, domain.ReasonNotFound, outcome.Reason)

	outcome = uc.Verify(context.Background(), domain.NormalizedClaim{ClaimText: "free text only"})
	assert.Equal(t, domain.ReasonUnresolved, outcome.Reason)
	assert.Zero(t, client.lookupCalls)
}

func TestVerifyTransportErrors(t *testing.T) {
	t.Run("single fault is retried", func(t *testing.T) {
		client, hashes := seededClient(t, testRecord("f-1", 1))
		client.lookupFaults = 1
		uc := NewVerificationUsecase(client, nil, 0)

		outcome := uc.Verify(context.Background(), domain.NormalizedClaim{FactHash: hashes[0]})
		assert.True(t, outcome.Verified())
		assert.Equal(t, 2, client.lookupCalls)
	})

	t.Run("persistent fault never verifies", func(t *testing.T) {
		client, hashes := seededClient(t, testRecord("f-1", 1))
		client.lookupFaults = 10
		uc := NewVerificationUsecase(client, nil, 0)

		outcome := uc.Verify(context.Background(), domain.NormalizedClaim{FactHash: hashes[0]})
		assert.False(t, outcome.Verified())
		assert.Equal(t, domain.ReasonUnavailable, outcome.Reason)
	})
}

type erroringClient struct {
	fakeRegistryClient
	err error
}

func (c *erroringClient) LookupByHash(ctx context.Context, hash factguard.FactHash) (domain.RegistryEntry, error) {
	return domain.RegistryEntry{}, c.err
}

func TestVerifyOtherErrors(t *testing.T) {
	uc := NewVerificationUsecase(&erroringClient{err: errors.New("decode failure")}, nil, 0)
	outcome := uc.Verify(context.Background(), domain.NormalizedClaim{FactHash: factguard.FactHash{1}})
	assert.False(t, outcome.Verified())
	assert.Equal(t, "decode failure", outcome.Reason)
}

func TestVerifyBatchKeepsOrder(t *testing.T) {
	records := make([]factguard.FactRecord, 0, 20)
	for i := 0; i < 20; i++ {
		records = append(records, testRecord(fmt.Sprintf("f-%02d", i), 1))
	}
	client, hashes := seededClient(t, records...)
	uc := NewVerificationUsecase(client, nil, 4)

	claims := make([]domain.NormalizedClaim, 0, len(hashes)+1)
	for _, h := range hashes {
		claims = append(claims, domain.NormalizedClaim{FactHash: h})
	}
	claims = append(claims, domain.NormalizedClaim{FactID: "missing"})

	outcomes := uc.VerifyBatch(context.Background(), claims)
	require.Len(t, outcomes, len(claims))
	for i, h := range hashes {
		assert.True(t, outcomes[i].Verified())
		assert.Equal(t, h, outcomes[i].FactHash)
	}
	assert.Equal(t, domain.ReasonNotFound, outcomes[len(outcomes)-1].Reason)
}
