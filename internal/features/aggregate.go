package features

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
)

// Aggregate concatenates sets in the given order and sorts the result by
// descending confidence or coverage. The sort is stable so equal scores keep
// their concatenation order.
func Aggregate(kind Kind, sets []Set) (Set, error) {
	out := Set{Kind: kind}
	for i, set := range sets {
		if set.Kind != kind {
			return Set{}, fmt.Errorf("aggregate: set %d has kind %q, want %q", i, set.Kind, kind)
		}
		out.Tags = append(out.Tags, set.Tags...)
		out.Colors = append(out.Colors, set.Colors...)
	}
	slices.SortStableFunc(out.Tags, func(a, b TagFeature) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	slices.SortStableFunc(out.Colors, func(a, b ColorFeature) int {
		return cmp.Compare(b.Coverage, a.Coverage)
	})
	return out, nil
}

// Outcome is the result of one classifier call as seen by the aggregator.
type Outcome struct {
	ClassifierID string
	// Optional marks a classifier whose failure may be skipped instead of
	// aborting the whole aggregation.
	Optional bool
	Set      Set
	Err      error
}

// Collect applies the failure policy to outcomes and aggregates the
// successful sets. Any failed mandatory outcome aborts with its error;
// failed optional outcomes are returned as skipped. A failure caused by
// cancellation is only reported when no outcome failed for another reason,
// so the classifier that triggered an abort is the one named.
func Collect(kind Kind, outcomes []Outcome) (Set, []Outcome, error) {
	var (
		sets     = make([]Set, 0, len(outcomes))
		skipped  []Outcome
		abortErr error
	)
	for _, outcome := range outcomes {
		if outcome.Err == nil {
			sets = append(sets, outcome.Set)
			continue
		}
		if outcome.Optional {
			skipped = append(skipped, outcome)
			continue
		}
		if abortErr == nil || (isCancellation(abortErr) && !isCancellation(outcome.Err)) {
			abortErr = outcome.Err
		}
	}
	if abortErr != nil {
		return Set{}, skipped, abortErr
	}
	set, err := Aggregate(kind, sets)
	return set, skipped, err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
