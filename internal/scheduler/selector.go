package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// SelectionStrategy names the ordering strategy a caller requested; currently
// only "default" (the §4.D priority rules) is implemented, but the config
// carries a name so a future strategy can be added without changing the
// call signature.
type SelectionStrategy string

const DefaultStrategy SelectionStrategy = "default"

// SelectionConfig configures select() (spec §4.D).
type SelectionConfig struct {
	ItemCount int
	Strategy  SelectionStrategy
	// NewRatio is the target fraction of the batch drawn from New items,
	// in [0,1]. Spec default is 0.20.
	NewRatio float64
	// OverdueCapRatio bounds how much of the batch Overdue items may claim.
	// Spec default is 0.60.
	OverdueCapRatio float64
}

// DefaultSelectionConfig returns the spec §4.D defaults.
func DefaultSelectionConfig(itemCount int) SelectionConfig {
	return SelectionConfig{
		ItemCount:       itemCount,
		Strategy:        DefaultStrategy,
		NewRatio:        0.20,
		OverdueCapRatio: 0.60,
	}
}

// candidatePool groups a user's records by the lifecycle bucket the
// selection algorithm cares about, ahead of priority scoring.
type candidatePool struct {
	overdue  []*ItemLearningRecord
	dueToday []*ItemLearningRecord
	learning []*ItemLearningRecord
	newItems []uuid.UUID
}

// Select implements component D (Item Selector, spec §4.D): it ranks and
// picks a session batch honoring the strategy, quotas, and the 85% rule.
// The caller supplies recentAccuracy from the Performance Analyzer (E).
func Select(
	ctx context.Context,
	store Store,
	userID uuid.UUID,
	asOf time.Time,
	knownItemIDs []uuid.UUID,
	cfg SelectionConfig,
	recentAccuracy float64,
) ([]uuid.UUID, error) {
	if cfg.ItemCount <= 0 {
		return nil, NewError(KindInvalidInput, "item_count must be positive", nil)
	}

	due, err := store.QueryDue(ctx, userID, asOf, 0, nil)
	if err != nil {
		return nil, Wrap(KindUnavailable, "query_due failed", err)
	}

	pool := bucket(due, asOf)

	newCandidates, err := store.QueryNew(ctx, userID, knownItemIDs, cfg.ItemCount)
	if err != nil {
		return nil, Wrap(KindUnavailable, "query_new failed", err)
	}
	pool.newItems = newCandidates

	band := recentAccuracyBand(recentAccuracy)

	ordered := rankPool(pool, band, asOf)

	result := fillQuota(ordered, pool.newItems, cfg)

	if len(result) == 0 {
		return nil, ErrInsufficientItems
	}
	return result, nil
}

// bucket splits due records into Overdue/DueToday/Learning, deduplicating by
// item ID is unnecessary here since each record is already unique per
// (user,item) by construction of the store.
func bucket(due []*ItemLearningRecord, asOf time.Time) candidatePool {
	var pool candidatePool
	for _, r := range due {
		switch {
		case r.OverdueDays(asOf) > 0:
			pool.overdue = append(pool.overdue, r)
		case r.RepetitionCount >= 1 && r.RepetitionCount <= 2:
			pool.learning = append(pool.learning, r)
		default:
			pool.dueToday = append(pool.dueToday, r)
		}
	}
	return pool
}

// difficultyBand is the 85%-rule recommendation from the Performance
// Analyzer, expressed as a selection bias. It is a separate type from
// analyzer.go's OptimalBand in the same package (see recentAccuracyBand).
type difficultyBand int

const (
	bandSame difficultyBand = iota
	bandEasier
	bandHarder
)

// recentAccuracyBand maps recent accuracy to a selection bias per spec §4.D
// rule 5 / §4.E: accuracy above 90% biases toward lower-EF (harder) items;
// below 80% biases toward higher-EF (easier) items. Note the Performance
// Analyzer's own "Easier"/"Harder" band names (§4.E) describe the
// *recommendation*, not the bias direction here, so this is intentionally a
// distinct mapping rather than a reuse of analyzer.OptimalBand.
func recentAccuracyBand(accuracy float64) difficultyBand {
	switch {
	case accuracy > 0.90:
		return bandHarder
	case accuracy < 0.80:
		return bandEasier
	default:
		return bandSame
	}
}

// rankPool orders each bucket per spec §4.D, applying the 85% rule bias
// within ties. Overdue is ordered by (overdue_days desc, easiness_factor
// asc); DueToday by a weighted priority score; Learning preserves overdue-
// style ordering since it shares the same due-date semantics.
func rankPool(pool candidatePool, band difficultyBand, asOf time.Time) candidatePool {
	sort.SliceStable(pool.overdue, func(i, j int) bool {
		return lessOverdue(pool.overdue[i], pool.overdue[j], band, asOf)
	})
	sort.SliceStable(pool.dueToday, func(i, j int) bool {
		return lessDueToday(pool.dueToday[i], pool.dueToday[j], band, asOf)
	})
	sort.SliceStable(pool.learning, func(i, j int) bool {
		return lessOverdue(pool.learning[i], pool.learning[j], band, asOf)
	})
	return pool
}

func lessOverdue(a, b *ItemLearningRecord, band difficultyBand, asOf time.Time) bool {
	ao, bo := a.OverdueDays(asOf), b.OverdueDays(asOf)
	if ao != bo {
		return ao > bo // overdue_days desc
	}
	if a.EasinessFactor != b.EasinessFactor {
		return a.EasinessFactor < b.EasinessFactor
	}
	return tieBreak(a, b)
}

func lessDueToday(a, b *ItemLearningRecord, band difficultyBand, asOf time.Time) bool {
	pa := priorityScore(a, band, asOf)
	pb := priorityScore(b, band, asOf)
	if pa != pb {
		return pa > pb
	}
	return tieBreak(a, b)
}

// priorityScore implements spec §4.D rule 2's weighted formula:
// w1*overdue_days + w2*(1/ef) + w3*recent_error_rate, with the 85%-rule bias
// (rule 5) folded in as an EF-direction nudge.
func priorityScore(r *ItemLearningRecord, band difficultyBand, asOf time.Time) float64 {
	const w1, w2, w3 = 1.0, 2.0, 1.0

	overdue := float64(r.OverdueDays(asOf))
	invEF := 0.0
	if r.EasinessFactor > 0 {
		invEF = 1.0 / r.EasinessFactor
	}
	errorRate := 0.0
	if r.TotalReviews > 0 {
		errorRate = 1.0 - float64(r.CorrectCount)/float64(r.TotalReviews)
	}

	score := w1*overdue + w2*invEF + w3*errorRate

	switch band {
	case bandHarder:
		score += invEF // bias toward lower-EF (harder) items
	case bandEasier:
		score -= invEF // bias toward higher-EF (easier) items
	}
	return score
}

func tieBreak(a, b *ItemLearningRecord) bool {
	if !a.NextReviewDate.Equal(b.NextReviewDate) {
		return a.NextReviewDate.Before(b.NextReviewDate)
	}
	return a.ItemID.String() < b.ItemID.String()
}

// fillQuota assembles the final ordered batch: all Overdue (capped),
// DueToday, Learning, then New items, deduplicating by item ID and never
// padding beyond what exists. The New-item quota is reserved up front (spec
// §4.D rule 4's new-ratio) so a full due/learning pool cannot crowd out the
// New slice the ratio promises — S6 depends on this order of operations.
func fillQuota(pool candidatePool, newItems []uuid.UUID, cfg SelectionConfig) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, cfg.ItemCount)
	result := make([]uuid.UUID, 0, cfg.ItemCount)

	appendUpTo := func(items []*ItemLearningRecord, max int) {
		for _, r := range items {
			if len(result) >= cfg.ItemCount || max <= 0 {
				return
			}
			if seen[r.ItemID] {
				continue
			}
			seen[r.ItemID] = true
			result = append(result, r.ItemID)
			max--
		}
	}

	overdueCap := min(int(float64(cfg.ItemCount)*cfg.OverdueCapRatio), cfg.ItemCount)
	if overdueCap <= 0 && len(pool.overdue) > 0 {
		overdueCap = cfg.ItemCount
	}
	appendUpTo(pool.overdue, overdueCap)

	newQuota := int(float64(cfg.ItemCount) * cfg.NewRatio)
	if newQuota <= 0 && cfg.NewRatio > 0 && len(newItems) > 0 {
		newQuota = 1
	}
	remainingAfterOverdue := cfg.ItemCount - len(result)
	if newQuota > remainingAfterOverdue {
		newQuota = remainingAfterOverdue
	}
	if newQuota > len(newItems) {
		newQuota = len(newItems)
	}

	dueLearningQuota := cfg.ItemCount - len(result) - newQuota
	appendUpTo(pool.dueToday, dueLearningQuota)
	appendUpTo(pool.learning, cfg.ItemCount-newQuota-len(result))

	for _, id := range newItems {
		if len(result) >= cfg.ItemCount || newQuota <= 0 {
			break
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
		newQuota--
	}

	// Top up with whatever is left over (e.g. new-ratio reserved slots the
	// New pool couldn't fill) without exceeding cfg.ItemCount.
	if len(result) < cfg.ItemCount {
		appendUpTo(pool.dueToday, cfg.ItemCount-len(result))
		appendUpTo(pool.learning, cfg.ItemCount-len(result))
		for _, id := range newItems {
			if len(result) >= cfg.ItemCount {
				break
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			result = append(result, id)
		}
	}

	return result
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
