package scheduler

// AutoConfirmQuality is the default quality assigned when the 3-second
// reveal timer elapses with no user input (spec §4.C, §9 Open Questions).
// Configurable via GraderConfig for product experiments.
const AutoConfirmQuality = 3

// GraderConfig parameterizes quality grading bands.
type GraderConfig struct {
	// AutoConfirmQuality overrides the quality assigned on timer-fired
	// judgment. nil means "use the spec default" (AutoConfirmQuality const).
	AutoConfirmQuality *int
}

// DefaultGraderConfig returns the zero config, under which GradeAutoConfirmed
// uses the AutoConfirmQuality const. The response-time bands are fixed in
// GradeQuality and are not part of the config.
func DefaultGraderConfig() GraderConfig {
	return GraderConfig{}
}

// GradeQuality is the pure function (correct?, response_time_ms) -> Quality
// described in spec §4.C. nearMiss indicates the caller-supplied signal
// that an incorrect answer was "close" (e.g. a typo) — it maps to quality 1
// instead of 0.
func GradeQuality(isCorrect bool, responseTimeMs uint32, nearMiss bool) int {
	if isCorrect {
		switch {
		case responseTimeMs <= 3000:
			return 5
		case responseTimeMs <= 10000:
			return 4
		case responseTimeMs <= 30000:
			return 3
		default:
			return 2
		}
	}
	if nearMiss {
		return 1
	}
	return 0
}

// GradeAutoConfirmed returns the quality assigned when a reveal timer fires
// with no user judgment, per cfg (or the package default if cfg is zero).
func GradeAutoConfirmed(cfg GraderConfig) int {
	if cfg.AutoConfirmQuality == nil {
		return AutoConfirmQuality
	}
	return *cfg.AutoConfirmQuality
}
