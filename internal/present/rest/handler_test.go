package rest

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/factguard"
	"github.com/totegamma/factguard/internal/canonical"
	"github.com/totegamma/factguard/internal/domain"
	"github.com/totegamma/factguard/internal/infra/repository"
	"github.com/totegamma/factguard/internal/present/rest/middleware"
	"github.com/totegamma/factguard/internal/service"
	"github.com/totegamma/factguard/internal/usecase"
	"github.com/totegamma/factguard/schemas"
)

type testServer struct {
	e          *echo.Echo
	key        *ecdsa.PrivateKey
	index      *repository.ClaimIndex
	projection *repository.MemoryProjectionRepository
}

func newTestServer(t *testing.T, withProjection bool) *testServer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	writer := crypto.PubkeyToAddress(key.PublicKey)

	index := repository.NewClaimIndex()
	memory := repository.NewMemoryProjectionRepository()
	var projection usecase.ProjectionStore
	if withProjection {
		projection = memory
	}
	projector := usecase.NewProjector(projection, index, "WHO")

	registry := usecase.NewRegistry(repository.NewMemoryRegistryRepository(), usecase.WithPublisher(usecase.Publishers{projector}))
	_, err = registry.Bootstrap(context.Background(), writer)
	require.NoError(t, err)

	verifier := usecase.NewVerificationUsecase(usecase.NewLocalClient(registry, writer), nil, 4)
	handler := NewHandler(
		domain.Config{Name: "test-node", Publisher: "WHO", Transport: "local"},
		registry,
		usecase.NewCommitUsecase(registry, nil, projector),
		verifier,
		usecase.NewCheckUsecase(verifier, index, projection, nil),
		projection,
		nil,
		middleware.NewAuthMiddleware(service.NewAuthService(0)),
	)

	e := echo.New()
	handler.RegisterRoutes(e)
	return &testServer{e: e, key: key, index: index, projection: memory}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func testHash(b byte) factguard.FactHash {
	var h factguard.FactHash
	h[0] = b
	h[31] = b
	return h
}

func registerCommand(t *testing.T, key *ecdsa.PrivateKey, hash factguard.FactHash, factID string) factguard.SignedDocument {
	t.Helper()
	issued := time.Date(2025, 1, 29, 10, 0, 0, 0, time.UTC)
	sd, err := factguard.SignCommand(schemas.RegisterFactURL, schemas.RegisterFact{
		FactHash:       hash,
		FactID:         factID,
		Verdict:        factguard.VerdictFalse,
		Severity:       factguard.SeverityHigh,
		IssuedAt:       issued,
		LastReviewedAt: issued,
		Version:        1,
	}, key, time.Now())
	require.NoError(t, err)
	return sd
}

func testRecord(factID, claim string) factguard.FactRecord {
	issued := time.Date(2025, 1, 29, 10, 0, 0, 0, time.UTC)
	return factguard.FactRecord{
		FactID:    factID,
		ClaimText: claim,
		Verdict:   factguard.VerdictFalse,
		Severity:  factguard.SeverityHigh,
		Summary:   "No clinical evidence supports this claim.",
		Evidence: []factguard.Evidence{
			{URL: "https://who.int/fact-sheets/flu", Title: "Influenza fact sheet", AccessedAt: issued},
		},
		Topics:         []string{"flu", "remedies"},
		IssuedAt:       issued,
		LastReviewedAt: issued,
		Version:        1,
	}
}

// recordCommand signs a register command carrying record under hash.
func recordCommand(t *testing.T, key *ecdsa.PrivateKey, hash factguard.FactHash, record factguard.FactRecord) factguard.SignedDocument {
	t.Helper()
	sd, err := factguard.SignCommand(schemas.RegisterFactURL, schemas.RegisterFact{
		FactHash:       hash,
		FactID:         record.FactID,
		Verdict:        record.Verdict,
		Severity:       record.Severity,
		IssuedAt:       record.IssuedAt,
		LastReviewedAt: record.LastReviewedAt,
		Version:        record.Version,
		Record:         &record,
	}, key, time.Now())
	require.NoError(t, err)
	return sd
}

func statusCommand(t *testing.T, key *ecdsa.PrivateKey, hash factguard.FactHash, status factguard.Status) factguard.SignedDocument {
	t.Helper()
	sd, err := factguard.SignCommand(schemas.UpdateStatusURL, schemas.UpdateStatus{FactHash: hash, Status: status}, key, time.Now())
	require.NoError(t, err)
	return sd
}

func TestWellKnown(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodGet, "/.well-known/factguard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	wk := decode[factguard.WellKnown](t, rec)
	assert.Equal(t, "test-node", wk.Name)
	assert.Equal(t, "local", wk.Transport)
	assert.Equal(t, "/commit", wk.Endpoints["dev.factguard.commit"].Template)
}

func TestCommitAndLookup(t *testing.T) {
	s := newTestServer(t, true)
	hash := testHash(1)

	rec := s.do(t, http.MethodPost, "/commit", registerCommand(t, s.key, hash, "who-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := decode[domain.Receipt](t, rec)
	assert.Equal(t, uint64(1), receipt.Sequence)

	rec = s.do(t, http.MethodGet, "/facts/"+hash.Hex(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode[domain.RegistryEntry](t, rec)
	assert.Equal(t, "who-1", entry.FactID)
	assert.Equal(t, factguard.StatusActive, entry.Status)

	rec = s.do(t, http.MethodGet, "/facts/id/who-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, hash, decode[domain.RegistryEntry](t, rec).FactHash)

	rec = s.do(t, http.MethodGet, "/facts/"+hash.Hex()+"/exists", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"exists":true,"status":"active"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/facts/"+testHash(9).Hex()+"/exists", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"exists":false}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[domain.Stats](t, rec)
	assert.Equal(t, uint64(1), stats.TotalFacts)
	assert.Equal(t, crypto.PubkeyToAddress(s.key.PublicKey), stats.Writer)
}

func TestCommitRejections(t *testing.T) {
	s := newTestServer(t, true)
	hash := testHash(2)

	rec := s.do(t, http.MethodPost, "/commit", registerCommand(t, s.key, hash, "who-2"))
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("duplicate hash", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/commit", registerCommand(t, s.key, hash, "who-2"))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, string(domain.CodeAlreadyExists), decode[errorBody](t, rec).Code)
	})

	t.Run("not the writer", func(t *testing.T) {
		stranger, err := crypto.GenerateKey()
		require.NoError(t, err)
		rec := s.do(t, http.MethodPost, "/commit", registerCommand(t, stranger, testHash(3), "who-3"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, string(domain.CodeUnauthorized), decode[errorBody](t, rec).Code)
	})

	t.Run("tampered document", func(t *testing.T) {
		sd := registerCommand(t, s.key, testHash(4), "who-4")
		sd.Document = sd.Document + " "
		rec := s.do(t, http.MethodPost, "/commit", sd)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown schema", func(t *testing.T) {
		sd, err := factguard.SignCommand("https://example.com/unknown.json", struct{}{}, s.key, time.Now())
		require.NoError(t, err)
		rec := s.do(t, http.MethodPost, "/commit", sd)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/commit", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestLookupErrors(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodGet, "/facts/not-a-hash", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/facts/"+testHash(7).Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(domain.CodeNotFound), decode[errorBody](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/facts/id/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerify(t *testing.T) {
	s := newTestServer(t, true)
	hash := testHash(5)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/commit", registerCommand(t, s.key, hash, "who-5")).Code)

	rec := s.do(t, http.MethodPost, "/verify", domain.NormalizedClaim{FactHash: hash})
	require.Equal(t, http.StatusOK, rec.Code)
	var verified map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verified))
	assert.Equal(t, "verified", verified["kind"])
	assert.Equal(t, "false", verified["verdict"])
	assert.Equal(t, "who-5", verified["fact_id"])

	rec = s.do(t, http.MethodPost, "/verify", domain.NormalizedClaim{FactID: "nobody"})
	require.Equal(t, http.StatusOK, rec.Code)
	var missing map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &missing))
	assert.Equal(t, "no_authoritative_match", missing["kind"])
	assert.NotContains(t, missing, "verdict")

	rec = s.do(t, http.MethodPost, "/verify/batch", []domain.NormalizedClaim{
		{FactHash: hash},
		{FactHash: testHash(6)},
		{},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var batch []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	require.Len(t, batch, 3)
	assert.Equal(t, "verified", batch[0]["kind"])
	assert.Equal(t, "no_authoritative_match", batch[1]["kind"])
	assert.Equal(t, "no_authoritative_match", batch[2]["kind"])
}

func TestCommitProjectsRecord(t *testing.T) {
	s := newTestServer(t, true)
	record := testRecord("who-10", "Vitamin C prevents the flu")
	hash, _, err := canonical.HashRecord(record)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/commit", recordCommand(t, s.key, hash, record))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/published/who-10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	published := decode[domain.PublishedFact](t, rec)
	assert.Equal(t, hash, published.FactHash)
	assert.Equal(t, "Vitamin C prevents the flu", published.Record.ClaimText)
	assert.Equal(t, factguard.StatusActive, published.Record.Status)
	assert.Equal(t, "WHO", published.Publisher)
	assert.Equal(t, "local:1", published.TxRef)

	indexed, found, err := s.index.Lookup(context.Background(), "vitamin c prevents the FLU")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, hash, indexed)

	t.Run("hash does not match record", func(t *testing.T) {
		other := testRecord("who-11", "Onions absorb viruses")
		rec := s.do(t, http.MethodPost, "/commit", recordCommand(t, s.key, testHash(11), other))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(domain.CodeCanonicalization), decode[errorBody](t, rec).Code)

		rec = s.do(t, http.MethodGet, "/facts/id/who-11", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = s.do(t, http.MethodGet, "/published/who-11", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("withdrawal reaches the projection", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/commit", statusCommand(t, s.key, hash, factguard.StatusWithdrawn))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(t, http.MethodGet, "/published/who-10", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, factguard.StatusWithdrawn, decode[domain.PublishedFact](t, rec).Record.Status)
	})
}

func TestCheck(t *testing.T) {
	s := newTestServer(t, true)
	record := testRecord("who-8", "Garlic cures the flu")
	hash, _, err := canonical.HashRecord(record)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/commit", recordCommand(t, s.key, hash, record)).Code)

	rec := s.do(t, http.MethodPost, "/check", checkRequest{Text: "garlic  cures the FLU", Channel: "sms"})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[domain.CheckResult](t, rec)
	assert.True(t, result.OnChainVerified)
	assert.Equal(t, domain.MethodOnChain, result.VerificationMethod)
	assert.Equal(t, "who-8", result.FactID)
	assert.Equal(t, "sms", result.Channel)

	rec = s.do(t, http.MethodPost, "/check", checkRequest{Text: "something unregistered"})
	require.Equal(t, http.StatusOK, rec.Code)
	result = decode[domain.CheckResult](t, rec)
	assert.False(t, result.OnChainVerified)
	assert.Equal(t, domain.MethodNone, result.VerificationMethod)

	rec = s.do(t, http.MethodPost, "/check", checkRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublished(t *testing.T) {
	s := newTestServer(t, true)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.projection.Save(ctx, domain.PublishedFact{
			Record:   factguard.FactRecord{FactID: id, IssuedAt: base.Add(time.Duration(i) * time.Hour)},
			FactHash: testHash(byte(i + 1)),
		}))
	}

	rec := s.do(t, http.MethodGet, "/published?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[publishedResponse](t, rec)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "c", page.Items[0].Record.FactID)

	rec = s.do(t, http.MethodGet, "/published?limit=2&offset=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[publishedResponse](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a", page.Items[0].Record.FactID)

	rec = s.do(t, http.MethodGet, "/published?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/published/b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testHash(2), decode[domain.PublishedFact](t, rec).FactHash)

	rec = s.do(t, http.MethodGet, "/published/zzz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOptionalBackends(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/published", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodGet, "/realtime", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
