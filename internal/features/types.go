package features

import "fmt"

// Kind selects which classifier family produced a feature set.
type Kind string

const (
	KindTag   Kind = "tag"
	KindColor Kind = "color"
)

// ParseKind validates a kind name.
func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindTag, KindColor:
		return Kind(value), nil
	default:
		return "", fmt.Errorf("unknown classifier kind %q", value)
	}
}

// TagFeature is a predicted keyword with the classifier's confidence.
type TagFeature struct {
	Name       string
	Confidence float64
}

// ColorFeature is a dominant color with the fraction of the image it covers.
type ColorFeature struct {
	Name     string
	Coverage float64
	Red      int
	Green    int
	Blue     int
}

// Set is an ordered sequence of features of a single kind.
// Only the slice matching Kind is populated.
type Set struct {
	Kind   Kind
	Tags   []TagFeature
	Colors []ColorFeature
}

// Len reports the number of features in the set.
func (s Set) Len() int {
	if s.Kind == KindColor {
		return len(s.Colors)
	}
	return len(s.Tags)
}
