package refresh_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rss-digest/internal/usecase/fetch"
	"rss-digest/internal/usecase/refresh"
)

func TestNormalizeCategory(t *testing.T) {
	tests := map[string]string{
		"":         "all",
		"all":      "all",
		"TOUS":     "all",
		" tous ":   "all",
		"iOS":      "ios",
		"hardware": "hardware",
	}
	for in, want := range tests {
		assert.Equal(t, want, refresh.NormalizeCategory(in), "input %q", in)
	}
}

/* ───────── Query ───────── */

func TestQuery_UnknownCategoryDoesNotRefresh(t *testing.T) {
	f := newFixture(t, refresh.Config{})

	_, err := f.svc.Query(context.Background(), refresh.QueryRequest{Category: "sports", Force: true})

	assert.ErrorIs(t, err, refresh.ErrInvalidFilter)
	assert.Zero(t, f.fetcher.calls.Load())
}

func TestQuery_FiltersByCategory(t *testing.T) {
	f := newFixture(t, refresh.Config{})

	resp, err := f.svc.Query(context.Background(), refresh.QueryRequest{Category: "ios"})

	require.NoError(t, err)
	assert.Equal(t, "ios", resp.Category)
	assert.Equal(t, 2, resp.Count())
	for _, a := range resp.Articles {
		assert.Contains(t, a.Categories, "ios")
	}
	assert.Equal(t, f.clock.t, resp.LastUpdate)
	assert.Equal(t, refresh.OutcomeRefreshed, resp.Refresh.Outcome)
	assert.Empty(t, resp.Warning)
}

func TestQuery_TousIsAll(t *testing.T) {
	f := newFixture(t, refresh.Config{})

	resp, err := f.svc.Query(context.Background(), refresh.QueryRequest{Category: "tous"})

	require.NoError(t, err)
	assert.Equal(t, refresh.CategoryAll, resp.Category)
	assert.Equal(t, 4, resp.Count())
}

func TestQuery_PredefinedCategoryWithoutArticles(t *testing.T) {
	f := newFixture(t, refresh.Config{})

	resp, err := f.svc.Query(context.Background(), refresh.QueryRequest{Category: "apps"})

	require.NoError(t, err)
	assert.Zero(t, resp.Count())
	assert.NotNil(t, resp.Articles)
}

func TestQuery_PersistenceFailureServesMemory(t *testing.T) {
	f := newFixture(t, refresh.Config{})
	f.repo.saveErr = errors.New("read-only file system")

	resp, err := f.svc.Query(context.Background(), refresh.QueryRequest{})

	require.NoError(t, err)
	assert.Equal(t, 4, resp.Count())
	assert.NotEmpty(t, resp.Warning)
	assert.Equal(t, refresh.OutcomePersistFailed, resp.Refresh.Outcome)
	assert.True(t, resp.LastUpdate.IsZero())
}

/* ───────── Categories ───────── */

func TestCategories(t *testing.T) {
	f := newFixture(t, refresh.Config{})
	_, err := f.svc.Refresh(context.Background(), false)
	require.NoError(t, err)

	got := f.svc.Categories()

	names := make([]string, len(got))
	for i, c := range got {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"ios", "hardware", "apps", "services", "autres"}, names)
	assert.Equal(t, refresh.CategoryInfo{Name: "ios", Label: "iOS", Count: 2, Predefined: true}, got[0])
	assert.Equal(t, refresh.CategoryInfo{Name: "autres", Label: "Autres", Count: 0, Predefined: true}, got[4])
}

/* ───────── Status ───────── */

func TestStatus_NeverRefreshed(t *testing.T) {
	f := newFixture(t, refresh.Config{})

	rep := f.svc.Status()

	assert.Equal(t, refresh.StatusWarning, rep.Status)
	assert.Len(t, rep.Warnings, 2, "never refreshed and empty")
	assert.Equal(t, 4, rep.Sources)
}

func TestStatus_OK(t *testing.T) {
	f := newFixture(t, refresh.Config{})
	_, err := f.svc.Refresh(context.Background(), false)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	rep := f.svc.Status()

	assert.Equal(t, refresh.StatusOK, rep.Status)
	assert.Empty(t, rep.Warnings)
	assert.Equal(t, 4, rep.Articles)
	assert.Equal(t, 4, rep.NewArticles)
	assert.Equal(t, time.Hour, rep.Age)
	assert.Equal(t, refresh.OutcomeRefreshed, rep.LastCycle.Outcome)
}

func TestReads_RecomputeIsNew(t *testing.T) {
	f := newFixture(t, refresh.Config{})
	_, err := f.svc.Refresh(context.Background(), false)
	require.NoError(t, err)
	for _, a := range f.svc.Articles(refresh.CategoryAll) {
		assert.True(t, a.IsNew)
	}

	// サイクルなしでも読み出し時に窓を過ぎた記事は new でなくなる
	f.clock.Advance(3 * 24 * time.Hour)

	for _, a := range f.svc.Articles(refresh.CategoryAll) {
		assert.False(t, a.IsNew, a.Link)
	}
	assert.Zero(t, f.svc.Status().NewArticles)
}

func TestStatus_StaleAndFailedSources(t *testing.T) {
	f := newFixture(t, refresh.Config{StatusStaleAfter: time.Hour})
	f.fetcher.errs[sources[0].URL] = fetch.ErrSourceFetch
	_, err := f.svc.Refresh(context.Background(), false)
	require.NoError(t, err)
	f.clock.Advance(3 * time.Hour)

	rep := f.svc.Status()

	assert.Equal(t, refresh.StatusWarning, rep.Status)
	assert.Len(t, rep.Warnings, 2)
	assert.Contains(t, rep.Warnings[1], "1 of 4 sources failed")
}
