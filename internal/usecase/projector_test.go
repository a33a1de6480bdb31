package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/domain"
)

func statusChanged(hash factguard.FactHash, status factguard.Status) domain.Event {
	return domain.Event{
		Type:          domain.EventFactStatusChanged,
		EmittedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		StatusChanged: &domain.FactStatusChanged{FactHash: hash, Previous: factguard.StatusActive, Status: status},
	}
}

func TestProjectorProject(t *testing.T) {
	projection := &fakeProjection{}
	index := &fakeIndex{}
	p := NewProjector(projection, index, "WHO")

	record := testRecord("a", 1)
	record.Status = factguard.StatusWithdrawn
	hash := mustHash(t, record)
	p.Project(context.Background(), record, hash, &domain.Receipt{TxRef: "0xabc", Block: 7})

	saved, ok := projection.saved["a"]
	require.True(t, ok)
	assert.Equal(t, hash, saved.FactHash)
	assert.Equal(t, factguard.StatusActive, saved.Record.Status)
	assert.Equal(t, "0xabc", saved.TxRef)
	assert.Equal(t, uint64(7), saved.Block)
	assert.Equal(t, "WHO", saved.Publisher)
	assert.Equal(t, hash, index.claims["claim a"])

	var nilProjector *Projector
	assert.NotPanics(t, func() { nilProjector.Project(context.Background(), record, hash, nil) })
}

func TestProjectorFollowsStatusChanges(t *testing.T) {
	ctx := context.Background()
	projection := &fakeProjection{}
	p := NewProjector(projection, nil, "")

	record := testRecord("a", 1)
	hash := mustHash(t, record)
	p.Project(ctx, record, hash, nil)

	require.NoError(t, p.Publish(ctx, statusChanged(hash, factguard.StatusWithdrawn)))
	assert.Equal(t, factguard.StatusWithdrawn, projection.saved["a"].Record.Status)

	// hashes registered elsewhere are not projected here
	assert.NoError(t, p.Publish(ctx, statusChanged(mustHash(t, testRecord("b", 1)), factguard.StatusSuperseded)))

	assert.NoError(t, p.Publish(ctx, domain.Event{Type: domain.EventWriterChanged, WriterChanged: &domain.WriterChanged{}}))
	assert.NoError(t, NewProjector(nil, nil, "").Publish(ctx, statusChanged(hash, factguard.StatusSuperseded)))
}

type failingPublisher struct {
	err   error
	calls int
}

func (p *failingPublisher) Publish(ctx context.Context, event domain.Event) error {
	p.calls++
	return p.err
}

func TestPublishersDeliverToAll(t *testing.T) {
	first := &failingPublisher{err: errors.New("redis down")}
	second := &failingPublisher{}

	err := Publishers{first, second}.Publish(context.Background(), statusChanged(factguard.FactHash{1}, factguard.StatusWithdrawn))
	assert.ErrorContains(t, err, "redis down")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)

	assert.NoError(t, Publishers{second}.Publish(context.Background(), domain.Event{}))
	assert.NoError(t, Publishers(nil).Publish(context.Background(), domain.Event{}))
}
