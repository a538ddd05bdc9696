package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3undle/m3undle/internal/config"
	"github.com/m3undle/m3undle/internal/models"
	"github.com/m3undle/m3undle/internal/refresh"
	"github.com/m3undle/m3undle/internal/service"
	"github.com/m3undle/m3undle/internal/snapshot"
)

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	return se.GetStatus()
}

func TestProviderHandler_CreateAndConflict(t *testing.T) {
	f := setupHandlerTest(t)
	svc := service.NewProviderService(f.repos, nil, "m3undle")
	h := NewProviderHandler(svc, nil)
	ctx := context.Background()

	input := &CreateProviderInput{}
	input.Body = ProviderRequest{Name: "primary", PlaylistURL: "http://up.example/p.m3u"}

	out, err := h.Create(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "primary", out.Body.Name)
	assert.False(t, out.Body.ID.IsZero())

	_, err = h.Create(ctx, input)
	assert.Equal(t, 409, statusOf(t, err))
}

func TestProviderHandler_GetUnknown(t *testing.T) {
	f := setupHandlerTest(t)
	svc := service.NewProviderService(f.repos, nil, "m3undle")
	h := NewProviderHandler(svc, nil)

	_, err := h.GetByID(context.Background(), &ProviderByIDInput{ID: models.NewULID().String()})
	assert.Equal(t, 404, statusOf(t, err))

	_, err = h.GetByID(context.Background(), &ProviderByIDInput{ID: "not-a-ulid"})
	assert.Equal(t, 400, statusOf(t, err))
}

func TestRefreshHandler_TriggerAndBusy(t *testing.T) {
	f := setupHandlerTest(t)
	store := snapshot.NewStore(t.TempDir(), nil)
	builder := snapshot.NewBuilder(f.repos, store, nil, 3, nil)
	// No Start: the queue fills and stays full, exercising the busy path.
	coordinator := refresh.New(config.RefreshConfig{IntervalHours: 1}, f.repos, nil, nil, builder, nil, nil)
	h := NewRefreshHandler(coordinator, f.repos)
	ctx := context.Background()

	out, err := h.TriggerFull(ctx, nil)
	require.NoError(t, err)
	assert.True(t, out.Body.Queued)
	assert.Equal(t, "full", out.Body.Mode)

	_, err = h.TriggerFull(ctx, nil)
	assert.Equal(t, 409, statusOf(t, err))

	_, err = h.TriggerRebuild(ctx, nil)
	assert.Equal(t, 409, statusOf(t, err))

	status, err := h.Status(ctx, nil)
	require.NoError(t, err)
	assert.False(t, status.Body.Busy, "queued but not executing")
}

func TestSnapshotHandler_ListAndGet(t *testing.T) {
	f := setupHandlerTest(t)
	profile := f.createProfile(t, "Default", "tv")
	snap := f.publishLineup(t, profile, []snapshot.IndexEntry{
		{StreamKey: "abcdefghij123456", DisplayName: "CNN", StreamURL: "http://up.example/c.ts"},
	}, snapshot.EmptyGuide)

	h := NewSnapshotHandler(f.repos)
	ctx := context.Background()

	list, err := h.ListByProfile(ctx, &ProfileByIDInput{ID: profile.ID.String()})
	require.NoError(t, err)
	require.Len(t, list.Body.Snapshots, 1)
	assert.Equal(t, snap.ID, list.Body.Snapshots[0].ID)

	got, err := h.GetByID(ctx, &SnapshotByIDInput{ID: snap.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotActive, got.Body.Status)

	_, err = h.GetByID(ctx, &SnapshotByIDInput{ID: models.NewULID().String()})
	assert.Equal(t, 404, statusOf(t, err))
}

func TestFetchRunHandler_ListAndGet(t *testing.T) {
	f := setupHandlerTest(t)
	ctx := context.Background()

	provider := &models.Provider{Name: "primary", PlaylistURL: "http://up.example/p.m3u"}
	require.NoError(t, f.repos.Providers.Create(ctx, provider))

	run := &models.FetchRun{
		ProviderID: provider.ID,
		Type:       models.RunTypeSnapshot,
		Status:     models.RunStatusRunning,
		StartedAt:  models.Now(),
	}
	require.NoError(t, f.repos.FetchRuns.Create(ctx, run))

	h := NewFetchRunHandler(f.repos)

	list, err := h.List(ctx, &ListFetchRunsInput{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list.Body.Runs, 1)

	filtered, err := h.List(ctx, &ListFetchRunsInput{ProviderID: provider.ID.String(), Limit: 10})
	require.NoError(t, err)
	require.Len(t, filtered.Body.Runs, 1)

	other, err := h.List(ctx, &ListFetchRunsInput{ProviderID: models.NewULID().String(), Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, other.Body.Runs)

	got, err := h.GetByID(ctx, &FetchRunByIDInput{ID: run.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Body.Status)

	_, err = h.GetByID(ctx, &FetchRunByIDInput{ID: models.NewULID().String()})
	assert.Equal(t, 404, statusOf(t, err))
}

func TestHealthHandler_Probes(t *testing.T) {
	f := setupHandlerTest(t)
	ctx := context.Background()

	t.Run("livez always ok", func(t *testing.T) {
		h := NewHealthHandler("1.0.0")
		out, err := h.GetLivez(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", out.Body.Status)
	})

	t.Run("readyz without database", func(t *testing.T) {
		h := NewHealthHandler("1.0.0")
		out, err := h.GetReadyz(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "not_ready", out.Body.Status)
	})

	t.Run("readyz with database", func(t *testing.T) {
		h := NewHealthHandler("1.0.0").WithDB(f.db)
		out, err := h.GetReadyz(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "ready", out.Body.Status)
	})

	t.Run("health report", func(t *testing.T) {
		h := NewHealthHandler("1.2.3").WithDB(f.db)
		out, err := h.GetHealth(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "healthy", out.Body.Status)
		assert.Equal(t, "1.2.3", out.Body.Version)
		assert.Equal(t, "ok", out.Body.Database.Status)
		assert.Positive(t, out.Body.CPU.Cores)
	})
}

func TestMapServiceError(t *testing.T) {
	assert.Equal(t, 404, statusOf(t, mapServiceError(service.ErrNotFound, "provider")))
	assert.Equal(t, 409, statusOf(t, mapServiceError(service.ErrConflict, "provider")))
	assert.Equal(t, 500, statusOf(t, mapServiceError(errors.New("boom"), "provider")))
}
