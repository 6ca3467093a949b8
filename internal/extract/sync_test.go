package extract

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/config"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/graphql"
	"github.com/Joseph-Mutua/fastweigh-intelligence/internal/warehouse"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// syncFixture wires a Syncer against an httptest GraphQL server and a
// temp-dir warehouse.
func syncFixture(t *testing.T, handler http.HandlerFunc, entities ...string) (*Syncer, *warehouse.Warehouse) {
	t.Helper()

	dir := t.TempDir()
	queryPath := filepath.Join(dir, "query.graphql")
	require.NoError(t, os.WriteFile(queryPath, []byte("query { stub }"), 0o644))

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.GraphQLEndpoint = srv.URL
	cfg.PageSize = 100
	cfg.MaxPages = 10
	cfg.Entities = map[string]config.Entity{}
	for _, name := range entities {
		cfg.Entities[name] = config.Entity{
			QueryFile:    queryPath,
			RootPath:     "data.records.nodes",
			PageInfoPath: "data.records.pageInfo",
		}
	}

	wh, err := warehouse.Open(filepath.Join(dir, "warehouse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { wh.Close() })

	client := graphql.NewClient(srv.URL, "key", time.Second,
		graphql.WithRetryIntervals(time.Millisecond, 2*time.Millisecond),
		graphql.WithLogger(testLogger()))

	return NewSyncer(&cfg, client, wh, testLogger()), wh
}

func recordsPage(ids []string) map[string]any {
	nodes := make([]any, len(ids))
	for i, id := range ids {
		nodes[i] = map[string]any{"id": id, "lastUpdatedAt": "2026-01-15T12:00:00Z"}
	}
	return map[string]any{
		"data": map[string]any{
			"records": map[string]any{
				"nodes":    nodes,
				"pageInfo": map[string]any{"hasNextPage": false, "endCursor": nil},
			},
		},
	}
}

func TestSyncEntities_StoresRecordsAndAdvancesWatermark(t *testing.T) {
	s, wh := syncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(recordsPage([]string{"t1", "t2"}))
	}, "tickets")

	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	counts, err := s.SyncEntities(context.Background(), nil, &start, &end)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"tickets": 2}, counts)

	events, err := wh.ReadRawEvents(context.Background(), "tickets")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	wm, ok, err := wh.LastSyncedAt(context.Background(), "tickets")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, wm.Equal(end), "watermark must land on the window end")
}

func TestSyncEntities_FailedWindowKeepsPriorWatermark(t *testing.T) {
	firstWindowEnd := time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)

	s, wh := syncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		after, _ := req.Variables["updatedAfter"].(string)
		// First window succeeds, second window hard-fails every attempt.
		if after == "2026-01-13T00:00:00Z" {
			json.NewEncoder(w).Encode(recordsPage([]string{"t1"}))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}, "tickets")

	start := firstWindowEnd.Add(-24 * time.Hour)
	end := firstWindowEnd.Add(48 * time.Hour)

	counts, err := s.SyncEntities(context.Background(), nil, &start, &end)
	require.Error(t, err)
	assert.Equal(t, 1, counts["tickets"], "first window's records are kept")

	wm, ok, err := wh.LastSyncedAt(context.Background(), "tickets")
	require.NoError(t, err)
	require.True(t, ok, "prior windows' progress must survive a later failure")
	assert.True(t, wm.Equal(firstWindowEnd),
		"watermark stays at the last fully stored window, got %v", wm)
}

func TestSyncEntities_EntityFailureDoesNotBlockOthers(t *testing.T) {
	// Entities are synced in sorted order, so the first 4 requests (one
	// window, full retry budget) belong to "invoices"; everything after
	// belongs to "tickets".
	attempts := 0
	s, wh := syncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 4 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(recordsPage([]string{"r1"}))
	}, "invoices", "tickets")

	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	counts, err := s.SyncEntities(context.Background(), nil, &start, &end)
	require.Error(t, err, "the failed entity's error must be reported")
	assert.Equal(t, 0, counts["invoices"])
	assert.Equal(t, 1, counts["tickets"], "a failing entity must not block the next one")

	_, ok, err := wh.LastSyncedAt(context.Background(), "tickets")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = wh.LastSyncedAt(context.Background(), "invoices")
	require.NoError(t, err)
	assert.False(t, ok, "the failed entity's watermark must stay put")
}

func TestSyncEntities_UnknownEntityRejectedBeforeIO(t *testing.T) {
	requests := 0
	s, _ := syncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(recordsPage(nil))
	}, "tickets")

	_, err := s.SyncEntities(context.Background(), []string{"haulers"}, nil, nil)
	require.Error(t, err)
	var cerr *config.Error
	assert.ErrorAs(t, err, &cerr)
	assert.Zero(t, requests, "misconfiguration must surface before any network I/O")
}

func TestSyncEntities_ResumesFromWatermark(t *testing.T) {
	var afters []string
	s, wh := syncFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		after, _ := req.Variables["updatedAfter"].(string)
		afters = append(afters, after)
		json.NewEncoder(w).Encode(recordsPage([]string{"t1"}))
	}, "tickets")

	wm := time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	require.NoError(t, wh.AdvanceWatermark(context.Background(), "tickets", wm))

	end := wm.Add(24 * time.Hour)
	_, err := s.SyncEntities(context.Background(), nil, nil, &end)
	require.NoError(t, err)

	require.Len(t, afters, 1)
	assert.Equal(t, "2026-01-14T00:00:00Z", afters[0], "sync must resume from the stored watermark")
}
