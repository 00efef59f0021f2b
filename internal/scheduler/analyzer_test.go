package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOutcomeSource struct {
	outcomes []ReviewOutcome
	calls    int
}

func (f *fakeOutcomeSource) RecentOutcomes(ctx context.Context, userID uuid.UUID, window int) ([]ReviewOutcome, error) {
	f.calls++
	return f.outcomes, nil
}

type fakeAnalysisCache struct {
	entries map[uuid.UUID]*Analysis
}

func newFakeAnalysisCache() *fakeAnalysisCache {
	return &fakeAnalysisCache{entries: map[uuid.UUID]*Analysis{}}
}

func (c *fakeAnalysisCache) Get(ctx context.Context, userID uuid.UUID) (*Analysis, bool) {
	a, ok := c.entries[userID]
	return a, ok
}

func (c *fakeAnalysisCache) Set(ctx context.Context, userID uuid.UUID, analysis *Analysis, ttl time.Duration) {
	c.entries[userID] = analysis
}

func outcomesWithAccuracy(n int, correct int) []ReviewOutcome {
	out := make([]ReviewOutcome, n)
	for i := 0; i < n; i++ {
		q := 1
		if i < correct {
			q = 4
		}
		out[i] = ReviewOutcome{Quality: q}
	}
	return out
}

func TestAnalyze_Bands(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		correct    int
		wantBand   OptimalBand
	}{
		{"high accuracy recommends harder", 20, 19, BandEasier},
		{"low accuracy recommends easier", 20, 10, BandHarder},
		{"mid accuracy recommends same", 20, 17, BandSame},
		{"no history is 0 accuracy", 0, 0, BandHarder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeOutcomeSource{outcomes: outcomesWithAccuracy(tt.total, tt.correct)}
			analyzer := NewAnalyzer(src, newFakeAnalysisCache(), NewFixedClock(time.Now()))

			analysis, err := analyzer.Analyze(context.Background(), uuid.New())
			require.NoError(t, err)
			assert.Equal(t, tt.wantBand, analysis.OptimalBand)
		})
	}
}

func TestAnalyze_CachesResult(t *testing.T) {
	src := &fakeOutcomeSource{outcomes: outcomesWithAccuracy(10, 9)}
	cache := newFakeAnalysisCache()
	analyzer := NewAnalyzer(src, cache, NewFixedClock(time.Now()))
	userID := uuid.New()

	_, err := analyzer.Analyze(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	_, err = analyzer.Analyze(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "second call should be served from cache, not recompute")
}
