// scoring/score.go — attempt-penalized score capping
package scoring

// MaxRawScore is the ceiling a station can award.
const MaxRawScore = 1000

// Penalty caps by prior attempt count. The first attempt keeps the full raw
// score; each further scored attempt lowers the ceiling.
const (
	secondAttemptCap = 800
	thirdAttemptCap  = 600
	lateAttemptCap   = 400
)

// Cap applies the penalty tier for attemptsBefore — the team's attempt count
// *before* this submission's increment — to rawScore.
func Cap(attemptsBefore, rawScore int) int {
	switch {
	case attemptsBefore <= 0:
		return rawScore
	case attemptsBefore == 1:
		return min(rawScore, secondAttemptCap)
	case attemptsBefore == 2:
		return min(rawScore, thirdAttemptCap)
	default:
		return min(rawScore, lateAttemptCap)
	}
}

// ValidRawScore reports whether a device-submitted score is in range.
func ValidRawScore(raw int) bool {
	return raw >= 0 && raw <= MaxRawScore
}

// ValidStation reports whether n names one of the physical stations.
func ValidStation(n int) bool {
	return n >= 1 && n <= NumStations
}
