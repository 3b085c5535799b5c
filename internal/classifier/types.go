package classifier

import (
	"net/http"
	"strings"
)

// IDPlaceholder is substituted with the classifier id in endpoint templates.
const IDPlaceholder = "CLASSIFIER_ID"

// Target identifies one classifier endpoint.
type Target struct {
	ID               string
	EndpointTemplate string
	// Optional classifiers may fail without aborting the invocation.
	Optional bool
}

// URL returns the call URL for the target.
func (t Target) URL() string {
	return strings.ReplaceAll(t.EndpointTemplate, IDPlaceholder, t.ID)
}

// Encoding selects how the request body is built.
type Encoding int

const (
	// EncodingJSON sends a JSON document referencing the asset by URL.
	EncodingJSON Encoding = iota
	// EncodingMultipart uploads the asset bytes with a JSON parameter block.
	EncodingMultipart
)

// Request describes the asset and tunables sent to every classifier.
type Request struct {
	AssetURL    string
	Asset       []byte
	AssetName   string
	ContentType string
	Threshold   float64
	TopN        int
	Encoding    Encoding
	// Operation names the analysis requested in the multipart parameter block.
	Operation string
}

// Credentials are attached to every classifier call.
type Credentials struct {
	Token  string
	APIKey string
	OrgID  string
}

// RawResponse is an undecoded classifier response.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
