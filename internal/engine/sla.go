package engine

import "time"

// SLACompliance computes the 0-100 compliance score for an incident.
//
// For a resolved incident the score is 100*target/actual, capped at 100:
// finishing early cannot exceed 100%. For an open incident the score is
// 100*(1-elapsed/target), clamped to [0,100]: reaching or exceeding the
// target yields 0, never a negative value.
//
// The function is pure; callers recompute it on demand so the score ticks
// down continuously for open incidents.
func SLACompliance(now, createdAt time.Time, target time.Duration, resolvedAt *time.Time) float64 {
	if target <= 0 {
		return 0
	}

	if resolvedAt != nil {
		actual := resolvedAt.Sub(createdAt)
		if actual <= 0 {
			return 100
		}
		score := 100 * target.Seconds() / actual.Seconds()
		return clampScore(score)
	}

	elapsed := now.Sub(createdAt)
	if elapsed <= 0 {
		return 100
	}
	score := 100 * (1 - elapsed.Seconds()/target.Seconds())
	return clampScore(score)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
