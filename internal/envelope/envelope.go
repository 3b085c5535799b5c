// Package envelope extracts the JSON result payload from a classifier
// response, which arrives either as a plain JSON body or as a
// multipart/form-data body with the payload in a part named "result".
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// ResultPartName is the multipart part that carries the classifier payload.
const ResultPartName = "result"

// MalformedResponseError reports a response whose payload cannot be decoded.
type MalformedResponseError struct {
	ClassifierID  string
	CorrelationID string
	Reason        string
	Err           error
}

func (e *MalformedResponseError) Error() string {
	msg := "malformed classifier response"
	if e.ClassifierID != "" {
		msg = fmt.Sprintf("malformed response from classifier %s", e.ClassifierID)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.CorrelationID != "" {
		msg += " (request_id=" + e.CorrelationID + ")"
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// RequestID returns the vendor correlation id of the response.
func (e *MalformedResponseError) RequestID() string { return e.CorrelationID }

// Classifier returns the id of the classifier that sent the response.
func (e *MalformedResponseError) Classifier() string { return e.ClassifierID }

// Decode returns the JSON payload carried by a response body. A multipart
// body without a result part decodes to an empty record.
func Decode(header http.Header, body []byte) (json.RawMessage, error) {
	mediaType, params, err := parseContentType(header.Get("Content-Type"))
	if err != nil {
		return nil, &MalformedResponseError{Reason: "invalid content-type", Err: err}
	}
	if mediaType == "multipart/form-data" {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, &MalformedResponseError{Reason: "multipart response without boundary"}
		}
		part, found, err := findPart(body, boundary, ResultPartName)
		if err != nil {
			return nil, &MalformedResponseError{Reason: "scan multipart body", Err: err}
		}
		if !found {
			return nil, nil
		}
		return parseJSON(part)
	}
	return parseJSON(body)
}

func parseContentType(value string) (string, map[string]string, error) {
	if strings.TrimSpace(value) == "" {
		return "application/json", nil, nil
	}
	mediaType, params, err := mime.ParseMediaType(value)
	if err != nil {
		return "", nil, err
	}
	return strings.ToLower(mediaType), params, nil
}

func parseJSON(data []byte) (json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, &MalformedResponseError{Reason: "empty JSON payload"}
	}
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedResponseError{Reason: "parse JSON payload", Err: err}
	}
	return raw, nil
}
