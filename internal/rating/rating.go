// Package rating maintains an article's running average rating.
//
// The average is never recomputed from the stored ratings. Each new review
// folds into the previous average:
//
//	avg' = (avg*n + r) / (n+1)
//
// The caller persists the new average and the incremented count together
// (see sqlite.DB.RateArticle for the transactional version).
package rating

import (
	"errors"
	"fmt"
	"math"
)

// Accepted rating scale. Update does not enforce it; request validation does.
const (
	Min = 1
	Max = 5
)

// ErrInvalidInput is returned when the inputs cannot produce a meaningful average.
var ErrInvalidInput = errors.New("rating: invalid input")

// Update returns the average after adding newRating to count previous
// ratings whose mean is average.
//
// The first rating seeds the average. Out-of-scale ratings are not clamped;
// a negative count or a non-finite result is reported as ErrInvalidInput.
func Update(count int64, average, newRating float64) (float64, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrInvalidInput, count)
	}

	var next float64
	if count == 0 {
		next = newRating
	} else {
		n := float64(count)
		next = (average*n + newRating) / (n + 1)
	}

	if math.IsNaN(next) || math.IsInf(next, 0) {
		return 0, fmt.Errorf("%w: average=%v rating=%v", ErrInvalidInput, average, newRating)
	}
	return next, nil
}
