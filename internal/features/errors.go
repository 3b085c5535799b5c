package features

import "fmt"

// InvalidFeatureError reports a decoded value outside its allowed range.
// A nil Value means the field was absent.
type InvalidFeatureError struct {
	ClassifierID string
	Feature      string
	Field        string
	Value        any
}

func (e *InvalidFeatureError) Error() string {
	prefix := "invalid feature"
	if e.ClassifierID != "" {
		prefix = fmt.Sprintf("classifier %s returned invalid feature", e.ClassifierID)
	}
	problem := fmt.Sprintf("has out of range value %v", e.Value)
	if e.Value == nil {
		problem = "is missing"
	}
	if e.Feature != "" {
		return fmt.Sprintf("%s %q: field %s %s", prefix, e.Feature, e.Field, problem)
	}
	return fmt.Sprintf("%s: field %s %s", prefix, e.Field, problem)
}

// Classifier returns the id of the classifier that produced the feature.
func (e *InvalidFeatureError) Classifier() string { return e.ClassifierID }
