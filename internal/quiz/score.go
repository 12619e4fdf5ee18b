package quiz

import "math"

// Percent is the rounded final percentage for score correct answers out of
// total questions. A session with no questions scores 0.
func Percent(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}

type band struct {
	min     int
	message string
}

// bands are checked top-down; the zero entry makes the banding exhaustive
// over [0,100].
var bands = []band{
	{min: 90, message: "Outstanding! You clearly know this material."},
	{min: 70, message: "Good job! One more review and you'll have it down."},
	{min: 50, message: "Not bad, but the documents deserve another read."},
	{min: 0, message: "Keep studying and try again."},
}

// BandMessage selects the user-facing message for a percentage.
func BandMessage(percent int) string {
	for _, b := range bands {
		if percent >= b.min {
			return b.message
		}
	}
	return bands[len(bands)-1].message
}
