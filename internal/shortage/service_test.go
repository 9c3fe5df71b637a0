package shortage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/selling-area/internal/catalog"
	"github.com/odyssey-erp/selling-area/internal/shared"
)

type memoryRepo struct {
	records  map[int64]*Record
	requests map[string]bool
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: map[int64]*Record{}, requests: map[string]bool{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Record, len(m.records))
	for id, rec := range m.records {
		snapshot[id] = *rec
	}
	claimed := make(map[string]bool, len(m.requests))
	for k, v := range m.requests {
		claimed[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.records = map[int64]*Record{}
		for id, rec := range snapshot {
			cp := rec
			m.records[id] = &cp
		}
		m.requests = claimed
		return err
	}
	return nil
}

func (m *memoryRepo) Insert(_ context.Context, rec Record) (int64, error) {
	m.nextID++
	rec.ID = m.nextID
	m.records[rec.ID] = &rec
	return rec.ID, nil
}

func (m *memoryRepo) ListOpen(_ context.Context, itemID *int64) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if rec.Resolved {
			continue
		}
		if itemID != nil && rec.ItemID != *itemID {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LoggedAt.Equal(out[j].LoggedAt) {
			return out[i].LoggedAt.Before(out[j].LoggedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) ListOpenForUpdate(ctx context.Context, itemID int64) ([]Record, error) {
	return t.repo.ListOpen(ctx, &itemID)
}

func (t *memoryTx) ApplyPayment(_ context.Context, p Payment, actor string, at time.Time) error {
	rec := t.repo.records[p.RecordID]
	rec.Quantity -= p.Take
	rec.ResolvedQty += p.Take
	if p.Settles {
		rec.Resolved = true
		rec.ResolvedAt = &at
		rec.ResolvedBy = actor
	}
	return nil
}

func (t *memoryTx) ClaimRequest(_ context.Context, key string, _ time.Time) error {
	if t.repo.requests[key] {
		return shared.ErrIdempotencyConflict
	}
	t.repo.requests[key] = true
	return nil
}

type memoryCatalog map[int64]bool

func (c memoryCatalog) GetItem(_ context.Context, id int64) (catalog.Item, error) {
	if !c[id] {
		return catalog.Item{}, catalog.ErrItemNotFound
	}
	return catalog.Item{ID: id, Name: "item"}, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, memoryCatalog{3: true, 7: true, 8: true}, nil)
}

func seed(repo *memoryRepo, itemID int64, qty int, at time.Time) int64 {
	id, _ := repo.Insert(context.Background(), Record{ItemID: itemID, Quantity: qty, LoggedAt: at, LoggedBy: "clerk"})
	return id
}

func TestResolvePaysOldestFirst(t *testing.T) {
	repo := newMemoryRepo()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	first := seed(repo, 7, 4, base)
	second := seed(repo, 7, 6, base.Add(time.Hour))
	svc := newTestService(repo)

	remaining, err := svc.Resolve(context.Background(), 7, 7, "manager@shop")
	require.NoError(t, err)
	require.Equal(t, 0, remaining)

	require.True(t, repo.records[first].Resolved)
	require.Equal(t, 0, repo.records[first].Quantity)
	require.Equal(t, 4, repo.records[first].ResolvedQty)
	require.Equal(t, "manager@shop", repo.records[first].ResolvedBy)
	require.NotNil(t, repo.records[first].ResolvedAt)

	require.False(t, repo.records[second].Resolved)
	require.Equal(t, 3, repo.records[second].Quantity)
	require.Equal(t, 3, repo.records[second].ResolvedQty)
}

func TestResolveReturnsLeftoverSupply(t *testing.T) {
	repo := newMemoryRepo()
	seed(repo, 7, 5, time.Now())
	svc := newTestService(repo)

	remaining, err := svc.Resolve(context.Background(), 7, 12, "clerk")
	require.NoError(t, err)
	require.Equal(t, 7, remaining)

	open, err := svc.ListOpen(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestResolveLeavesOtherItemsAlone(t *testing.T) {
	repo := newMemoryRepo()
	other := seed(repo, 8, 5, time.Now())
	svc := newTestService(repo)

	remaining, err := svc.Resolve(context.Background(), 7, 3, "clerk")
	require.NoError(t, err)
	require.Equal(t, 3, remaining)
	require.Equal(t, 5, repo.records[other].Quantity)
}

func TestResolveValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Resolve(context.Background(), 7, -1, "clerk")
	require.ErrorIs(t, err, ErrNegativeSupply)
	_, err = svc.Resolve(context.Background(), 7, 1, " ")
	require.ErrorIs(t, err, ErrActorRequired)

	remaining, err := svc.Resolve(context.Background(), 7, 0, "clerk")
	require.NoError(t, err)
	require.Zero(t, remaining)
}

func TestPayDownSkipsSettledRecords(t *testing.T) {
	payments, remaining := PayDown([]Record{
		{ID: 1, Quantity: 0, Resolved: true},
		{ID: 2, Quantity: 2},
		{ID: 3, Quantity: 5},
	}, 4)
	require.Equal(t, []Payment{{RecordID: 2, Take: 2, Settles: true}, {RecordID: 3, Take: 2}}, payments)
	require.Zero(t, remaining)
}

func TestLogValidatesInput(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	rec, err := svc.Log(context.Background(), LogInput{ItemID: 3, Quantity: 4, LocationID: "A1", Actor: "clerk"})
	require.NoError(t, err)
	require.NotZero(t, rec.ID)
	require.Equal(t, "clerk", rec.LoggedBy)

	_, err = svc.Log(context.Background(), LogInput{ItemID: 3, Quantity: 0, Actor: "clerk"})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestHandlerResolve(t *testing.T) {
	repo := newMemoryRepo()
	seed(repo, 7, 5, time.Now())
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), newTestService(repo))
	r := chi.NewRouter()
	r.Route("/shortages", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shortages/resolve", strings.NewReader(`{"item_id":7,"quantity":8,"actor":"clerk"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"remaining":3,"applied":5}`, rr.Body.String())

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shortages/resolve", strings.NewReader(`{"item_id":7,"quantity":8}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/shortages?item_id=abc", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnknownItemIsNotFound(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Log(context.Background(), LogInput{ItemID: 99, Quantity: 2, Actor: "clerk"})
	require.ErrorIs(t, err, catalog.ErrItemNotFound)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.records)

	_, err = svc.Resolve(context.Background(), 99, 5, "clerk")
	require.ErrorIs(t, err, catalog.ErrItemNotFound)
	_, err = svc.Resolve(context.Background(), 99, 0, "clerk")
	require.ErrorIs(t, err, catalog.ErrItemNotFound)
}

func TestHandlerUnknownItem(t *testing.T) {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), newTestService(newMemoryRepo()))
	r := chi.NewRouter()
	r.Route("/shortages", h.MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shortages", strings.NewReader(`{"item_id":99,"quantity":2,"actor":"clerk"}`)))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shortages/resolve", strings.NewReader(`{"item_id":99,"quantity":3,"actor":"clerk"}`)))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestResolveForRequestRejectsReplay(t *testing.T) {
	repo := newMemoryRepo()
	id := seed(repo, 7, 10, time.Now())
	svc := newTestService(repo)

	remaining, err := svc.ResolveForRequest(context.Background(), "r-1", 7, 4, "clerk")
	require.NoError(t, err)
	require.Zero(t, remaining)
	require.Equal(t, 6, repo.records[id].Quantity)

	_, err = svc.ResolveForRequest(context.Background(), "r-1", 7, 4, "clerk")
	require.ErrorIs(t, err, ErrDuplicateRequest)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, 6, repo.records[id].Quantity)

	remaining, err = svc.ResolveForRequest(context.Background(), "r-2", 7, 4, "clerk")
	require.NoError(t, err)
	require.Zero(t, remaining)
	require.Equal(t, 2, repo.records[id].Quantity)
}

func TestHandlerResolveReplayConflicts(t *testing.T) {
	repo := newMemoryRepo()
	seed(repo, 7, 10, time.Now())
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), newTestService(repo))
	r := chi.NewRouter()
	r.Route("/shortages", h.MountRoutes)

	body := `{"item_id":7,"quantity":4,"actor":"clerk","request_id":"scan-9"}`
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shortages/resolve", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shortages/resolve", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rr.Code)
}
