package classifier

import (
	"errors"
	"fmt"
	"strings"
)

// CallError reports a failed classifier call.
type CallError struct {
	ClassifierID  string
	StatusCode    int
	CorrelationID string
	VendorMessage string
	Err           error
}

func (e *CallError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "classifier %s call failed", e.ClassifierID)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.VendorMessage != "" {
		fmt.Fprintf(&b, ": %s", e.VendorMessage)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.CorrelationID != "" {
		fmt.Fprintf(&b, " (request_id=%s)", e.CorrelationID)
	}
	return b.String()
}

func (e *CallError) Unwrap() error { return e.Err }

// RequestID returns the vendor correlation id of the failed call.
func (e *CallError) RequestID() string { return e.CorrelationID }

// CorrelationID returns the vendor request id carried by err, if any.
func CorrelationID(err error) string {
	var carrier interface{ RequestID() string }
	if errors.As(err, &carrier) {
		return carrier.RequestID()
	}
	return ""
}

// ClassifierIDOf returns the classifier a failure is attributed to, if any.
func ClassifierIDOf(err error) string {
	var carrier interface{ Classifier() string }
	if errors.As(err, &carrier) {
		return carrier.Classifier()
	}
	return ""
}

// Classifier returns the id of the classifier that failed.
func (e *CallError) Classifier() string { return e.ClassifierID }
