package scheduler

import (
	"math"
	"time"
)

// maxIntervalDays caps the computed interval so a long unbroken streak never
// produces a runaway review date (spec §4.B edge cases).
const maxIntervalDays = 365

// easyBonus is applied to the computed interval when quality is a perfect 5
// (spec §4.B step 4).
const easyBonus = 1.3

// SM2Input is the pre-review state fed into CalculateSM2.
type SM2Input struct {
	Quality        int
	EasinessFactor float64
	RepetitionCount int
	IntervalDays    int
}

// SM2Output is the post-review state produced by CalculateSM2.
type SM2Output struct {
	EasinessFactor  float64
	RepetitionCount int
	IntervalDays    int
	NextReviewDate  time.Time
}

// CalculateSM2 is the pure SM-2-with-extensions transition function described
// in spec §4.B. It is a deterministic function of its inputs and `today`:
// equal inputs always yield equal outputs (spec §8 property 4).
func CalculateSM2(in SM2Input, today time.Time) SM2Output {
	q := clampQuality(in.Quality)

	ef := in.EasinessFactor + (0.1 - float64(5-q)*(0.08+float64(5-q)*0.02))
	ef = clampEF(ef)

	var rep int
	var interval int

	if q < 3 {
		rep = 0
		interval = initialIntervalDays
	} else {
		rep = in.RepetitionCount + 1
		switch rep {
		case 1:
			interval = initialIntervalDays
		case 2:
			interval = 6
		default:
			interval = bankersRound(float64(in.IntervalDays) * ef)
		}
		if q == 5 {
			interval = bankersRound(float64(interval) * easyBonus)
		}
	}

	if interval < 1 {
		interval = 1
	}
	if interval > maxIntervalDays {
		interval = maxIntervalDays
	}

	return SM2Output{
		EasinessFactor:  ef,
		RepetitionCount: rep,
		IntervalDays:    interval,
		NextReviewDate:  truncateToDate(today).AddDate(0, 0, interval),
	}
}

func clampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > 5 {
		return 5
	}
	return q
}

func clampEF(ef float64) float64 {
	if ef < minEasinessFactor {
		return minEasinessFactor
	}
	if ef > maxEasinessFactor {
		return maxEasinessFactor
	}
	return ef
}

// bankersRound implements round-half-to-even so interval recalculation is
// reproducible regardless of floating point direction of approach (spec
// §4.B edge cases: "rounding uses banker's rounding for reproducibility").
func bankersRound(x float64) int {
	floor := math.Floor(x)
	diff := x - floor
	switch {
	case diff < 0.5:
		return int(floor)
	case diff > 0.5:
		return int(floor) + 1
	default:
		// Exactly .5: round to even.
		if int64(floor)%2 == 0 {
			return int(floor)
		}
		return int(floor) + 1
	}
}
