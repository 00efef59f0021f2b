package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OptimalBand is the Performance Analyzer's difficulty recommendation
// (spec §4.E). Note it names the *recommendation*, not a bias direction —
// "Easier" here means "the learner is doing well, hand them harder items"
// per the spec's own parenthetical.
type OptimalBand string

const (
	BandEasier OptimalBand = "Easier" // accuracy > 90%: present harder items
	BandSame   OptimalBand = "Same"
	BandHarder OptimalBand = "Harder" // accuracy < 80%: present easier items
)

// Analysis is the output of analyze() (spec §4.E).
type Analysis struct {
	RecentAccuracy float64
	OptimalBand    OptimalBand
	ComputedAt     time.Time
}

// defaultAnalysisWindow is N in "accuracy over the most recent N reviews".
const defaultAnalysisWindow = 50

// analysisCacheTTL bounds cache staleness per spec §4.E / §5.
const analysisCacheTTL = 5 * time.Minute

// OutcomeSource supplies the recent reviews analyze() aggregates over. In
// production this is backed by the event log / review history; tests
// supply a fixed slice.
type OutcomeSource interface {
	RecentOutcomes(ctx context.Context, userID uuid.UUID, window int) ([]ReviewOutcome, error)
}

// AnalysisCache is the advisory, short-TTL cache described in spec §4.E and
// §5 ("tolerate staleness up to 5 min"). Get reports a miss, including any
// backend failure in implementations such as the Redis-backed one, as false;
// analyze() then recomputes.
type AnalysisCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*Analysis, bool)
	Set(ctx context.Context, userID uuid.UUID, analysis *Analysis, ttl time.Duration)
}

// Analyzer implements component E (Performance Analyzer, spec §4.E).
type Analyzer struct {
	source OutcomeSource
	cache  AnalysisCache
	window int
	clock  Clock
}

// NewAnalyzer builds an Analyzer with the spec default window (N=50).
func NewAnalyzer(source OutcomeSource, cache AnalysisCache, clock Clock) *Analyzer {
	return &Analyzer{source: source, cache: cache, window: defaultAnalysisWindow, clock: clock}
}

// Analyze computes { recent_accuracy, optimal_band } for a user, caching the
// result for up to 5 minutes.
func (a *Analyzer) Analyze(ctx context.Context, userID uuid.UUID) (*Analysis, error) {
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, userID); ok {
			return cached, nil
		}
	}

	outcomes, err := a.source.RecentOutcomes(ctx, userID, a.window)
	if err != nil {
		return nil, Wrap(KindUnavailable, "failed to load recent outcomes", err)
	}

	accuracy := computeAccuracy(outcomes)
	result := &Analysis{
		RecentAccuracy: accuracy,
		OptimalBand:    bandFromAccuracy(accuracy),
		ComputedAt:     a.now(),
	}

	if a.cache != nil {
		a.cache.Set(ctx, userID, result, analysisCacheTTL)
	}

	return result, nil
}

func (a *Analyzer) now() time.Time {
	if a.clock != nil {
		return a.clock.Now()
	}
	return time.Now()
}

func computeAccuracy(outcomes []ReviewOutcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	correct := 0
	for _, o := range outcomes {
		if o.Quality >= 3 {
			correct++
		}
	}
	return float64(correct) / float64(len(outcomes))
}

func bandFromAccuracy(accuracy float64) OptimalBand {
	switch {
	case accuracy > 0.90:
		return BandEasier
	case accuracy < 0.80:
		return BandHarder
	default:
		return BandSame
	}
}
