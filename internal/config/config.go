// Package config resolves the classifier settings for a job from per-job
// instructions layered over process-wide defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/example/assetmeta/internal/classifier"
	"github.com/example/assetmeta/internal/features"
)

// Instruction keys understood by Resolve.
const (
	KeyClassifierIDs       = "classifierIds"
	KeyEndpoint            = "endpoint"
	KeyToken               = "token"
	KeyAPIKey              = "apiKey"
	KeyOrgID               = "orgId"
	KeyKind                = "kind"
	KeyThreshold           = "threshold"
	KeyTopN                = "topN"
	KeyOptionalClassifiers = "optionalClassifiers"
	KeyCallTimeout         = "callTimeoutSeconds"
)

const (
	defaultThreshold = 0.7
	defaultTopN      = 10
)

// Defaults holds read-only settings resolved once at startup.
type Defaults struct {
	ClassifierIDs      []string `toml:"classifier_ids"`
	EndpointTemplate   string   `toml:"endpoint_template"`
	Token              string   `toml:"token"`
	APIKey             string   `toml:"api_key"`
	OrgID              string   `toml:"org_id"`
	Kind               string   `toml:"kind"`
	Threshold          *float64 `toml:"threshold"`
	TopN               *int     `toml:"top_n"`
	CallTimeoutSeconds int      `toml:"call_timeout_seconds"`
}

// Settings are the fully resolved classifier settings for one job.
type Settings struct {
	Targets     []classifier.Target
	Credentials classifier.Credentials
	Kind        features.Kind
	Threshold   float64
	TopN        int
	CallTimeout time.Duration
}

// LoadDefaults reads defaults from a TOML file. A missing file yields empty
// defaults.
func LoadDefaults(path string) (Defaults, error) {
	var d Defaults
	if strings.TrimSpace(path) == "" {
		return d, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return d, nil
		}
		return d, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("parse config %s: %w", path, err)
	}
	return d, nil
}

// Environment variables read by WithEnvironment.
const (
	EnvClassifierIDs = "ASSETMETA_CLASSIFIER_IDS"
	EnvEndpoint      = "ASSETMETA_ENDPOINT"
	EnvToken         = "ASSETMETA_TOKEN"
	EnvAPIKey        = "ASSETMETA_API_KEY"
	EnvOrgID         = "ASSETMETA_ORG_ID"
	EnvKind          = "ASSETMETA_KIND"
)

// WithEnvironment overlays non-empty environment values on d. It is only
// applied when the caller explicitly asks for test-mode credentials.
func (d Defaults) WithEnvironment(getenv func(string) string) Defaults {
	if v := strings.TrimSpace(getenv(EnvClassifierIDs)); v != "" {
		d.ClassifierIDs = splitList(v)
	}
	overlay := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	overlay(&d.EndpointTemplate, EnvEndpoint)
	overlay(&d.Token, EnvToken)
	overlay(&d.APIKey, EnvAPIKey)
	overlay(&d.OrgID, EnvOrgID)
	overlay(&d.Kind, EnvKind)
	return d
}

// Resolve merges per-job instructions over defaults and validates the result.
func Resolve(instructions map[string]string, d Defaults) (Settings, error) {
	get := func(key, fallback string) string {
		if v, ok := instructions[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fallback)
	}

	ids := d.ClassifierIDs
	if raw, ok := instructions[KeyClassifierIDs]; ok && strings.TrimSpace(raw) != "" {
		parsed, err := parseIDList(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", KeyClassifierIDs, err)
		}
		ids = parsed
	}
	ids = compact(ids)
	if len(ids) == 0 {
		return Settings{}, errors.New("no classifier ids configured")
	}

	endpoint := get(KeyEndpoint, d.EndpointTemplate)
	if endpoint == "" {
		return Settings{}, errors.New("no classifier endpoint configured")
	}
	if !strings.Contains(endpoint, classifier.IDPlaceholder) {
		return Settings{}, fmt.Errorf("endpoint %q has no %s placeholder", endpoint, classifier.IDPlaceholder)
	}

	kindValue := get(KeyKind, d.Kind)
	if kindValue == "" {
		kindValue = string(features.KindTag)
	}
	kind, err := features.ParseKind(kindValue)
	if err != nil {
		return Settings{}, err
	}

	threshold := defaultThreshold
	if d.Threshold != nil {
		threshold = *d.Threshold
	}
	if v := get(KeyThreshold, ""); v != "" {
		threshold, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", KeyThreshold, err)
		}
	}
	if threshold < 0 || threshold > 1 {
		return Settings{}, fmt.Errorf("%s must be within [0,1], got %v", KeyThreshold, threshold)
	}

	topN := defaultTopN
	if d.TopN != nil {
		topN = *d.TopN
	}
	if v := get(KeyTopN, ""); v != "" {
		topN, err = strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", KeyTopN, err)
		}
	}
	if topN < 0 {
		return Settings{}, fmt.Errorf("%s must not be negative, got %d", KeyTopN, topN)
	}

	timeout := classifier.DefaultCallTimeout
	if d.CallTimeoutSeconds > 0 {
		timeout = time.Duration(d.CallTimeoutSeconds) * time.Second
	}
	if v := get(KeyCallTimeout, ""); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return Settings{}, fmt.Errorf("%s must be a positive integer, got %q", KeyCallTimeout, v)
		}
		timeout = time.Duration(seconds) * time.Second
	}

	optional := make(map[string]bool)
	if raw := get(KeyOptionalClassifiers, ""); raw != "" {
		parsed, err := parseIDList(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", KeyOptionalClassifiers, err)
		}
		for _, id := range parsed {
			optional[id] = true
		}
	}

	targets := make([]classifier.Target, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, classifier.Target{ID: id, EndpointTemplate: endpoint, Optional: optional[id]})
	}

	creds := classifier.Credentials{
		Token:  get(KeyToken, d.Token),
		APIKey: get(KeyAPIKey, d.APIKey),
		OrgID:  get(KeyOrgID, d.OrgID),
	}
	// Default credentials are only ever sent to the default endpoint.
	if endpoint != strings.TrimSpace(d.EndpointTemplate) {
		creds = classifier.Credentials{
			Token:  get(KeyToken, ""),
			APIKey: get(KeyAPIKey, ""),
			OrgID:  get(KeyOrgID, ""),
		}
		if creds.Token == "" {
			return Settings{}, fmt.Errorf("%s overrides the default endpoint and requires its own %s", KeyEndpoint, KeyToken)
		}
	}

	return Settings{
		Targets:     targets,
		Credentials: creds,
		Kind:        kind,
		Threshold:   threshold,
		TopN:        topN,
		CallTimeout: timeout,
	}, nil
}

// parseIDList accepts a JSON array of strings or a comma-separated list.
func parseIDList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, err
		}
		return compact(ids), nil
	}
	return splitList(raw), nil
}

func splitList(raw string) []string {
	return compact(strings.Split(raw, ","))
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
