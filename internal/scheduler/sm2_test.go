package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateSM2(t *testing.T) {
	today := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		in           SM2Input
		wantEF       float64
		wantRep      int
		wantInterval int
	}{
		{
			name:         "first review, perfect recall",
			in:           SM2Input{Quality: 5, EasinessFactor: 2.5, RepetitionCount: 0, IntervalDays: 0},
			wantEF:       2.5,
			wantRep:      1,
			wantInterval: 1,
		},
		{
			name:         "second review, good recall",
			in:           SM2Input{Quality: 4, EasinessFactor: 2.5, RepetitionCount: 1, IntervalDays: 1},
			wantEF:       2.5,
			wantRep:      2,
			wantInterval: 6,
		},
		{
			name:         "third review grows by EF",
			in:           SM2Input{Quality: 4, EasinessFactor: 2.5, RepetitionCount: 2, IntervalDays: 6},
			wantEF:       2.5,
			wantRep:      3,
			wantInterval: 15,
		},
		{
			name:         "failing quality resets repetitions",
			in:           SM2Input{Quality: 2, EasinessFactor: 2.0, RepetitionCount: 5, IntervalDays: 40},
			wantEF:       1.68,
			wantRep:      0,
			wantInterval: 1,
		},
		{
			name:         "EF clamps at floor",
			in:           SM2Input{Quality: 0, EasinessFactor: 1.3, RepetitionCount: 3, IntervalDays: 10},
			wantEF:       1.3,
			wantRep:      0,
			wantInterval: 1,
		},
		{
			name:         "EF clamps at ceiling",
			in:           SM2Input{Quality: 5, EasinessFactor: 2.5, RepetitionCount: 10, IntervalDays: 300},
			wantEF:       2.5,
			wantRep:      11,
			wantInterval: 365, // capped
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := CalculateSM2(tt.in, today)
			assert.InDelta(t, tt.wantEF, out.EasinessFactor, 0.01)
			assert.Equal(t, tt.wantRep, out.RepetitionCount)
			assert.Equal(t, tt.wantInterval, out.IntervalDays)
			assert.Equal(t, today.AddDate(0, 0, tt.wantInterval), out.NextReviewDate)
		})
	}
}

func TestCalculateSM2_Deterministic(t *testing.T) {
	today := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	in := SM2Input{Quality: 4, EasinessFactor: 2.3, RepetitionCount: 3, IntervalDays: 12}

	a := CalculateSM2(in, today)
	b := CalculateSM2(in, today)
	assert.Equal(t, a, b)
}

func TestCalculateSM2_EasyBonus(t *testing.T) {
	today := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	withBonus := CalculateSM2(SM2Input{Quality: 5, EasinessFactor: 2.5, RepetitionCount: 2, IntervalDays: 6}, today)
	withoutBonus := CalculateSM2(SM2Input{Quality: 4, EasinessFactor: 2.5, RepetitionCount: 2, IntervalDays: 6}, today)

	assert.Greater(t, withBonus.IntervalDays, withoutBonus.IntervalDays)
}

func TestCalculateSM2_IntervalNeverExceedsCap(t *testing.T) {
	today := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := CalculateSM2(SM2Input{Quality: 5, EasinessFactor: 2.5, RepetitionCount: 20, IntervalDays: 364}, today)
	assert.LessOrEqual(t, out.IntervalDays, 365)
}

func TestBankersRound(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{2.5, 2},
		{3.5, 4},
		{2.4, 2},
		{2.6, 3},
		{-0.0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bankersRound(tt.in))
	}
}

func TestClampQuality(t *testing.T) {
	assert.Equal(t, 0, clampQuality(-3))
	assert.Equal(t, 5, clampQuality(9))
	assert.Equal(t, 3, clampQuality(3))
}
