package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeQuality(t *testing.T) {
	tests := []struct {
		name           string
		isCorrect      bool
		responseTimeMs uint32
		nearMiss       bool
		want           int
	}{
		{"correct under 3s", true, 2000, false, 5},
		{"correct exactly 3s", true, 3000, false, 5},
		{"correct just over 3s", true, 3001, false, 4},
		{"correct under 10s", true, 9000, false, 4},
		{"correct under 30s", true, 25000, false, 3},
		{"correct very slow", true, 45000, false, 2},
		{"incorrect no near miss", false, 5000, false, 0},
		{"incorrect near miss", false, 5000, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GradeQuality(tt.isCorrect, tt.responseTimeMs, tt.nearMiss)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGradeAutoConfirmed(t *testing.T) {
	assert.Equal(t, AutoConfirmQuality, GradeAutoConfirmed(DefaultGraderConfig()))

	custom := 2
	assert.Equal(t, 2, GradeAutoConfirmed(GraderConfig{AutoConfirmQuality: &custom}))
}
