// Package readtime estimates how long an article takes to read.
package readtime

import (
	"fmt"
	"math"
	"strings"
)

// WordsPerMinute is the assumed average reading speed.
const WordsPerMinute = 200

// Minutes returns the approximate reading time of text in minutes.
func Minutes(text string) float64 {
	return float64(len(strings.Fields(text))) / WordsPerMinute
}

// Estimate renders the reading time, e.g. "3 min read".
// Anything under a minute is "< 1 min read".
func Estimate(text string) string {
	m := Minutes(text)
	if m < 1 {
		return "< 1 min read"
	}
	return fmt.Sprintf("%d min read", int(math.Round(m)))
}
