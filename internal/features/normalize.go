package features

import (
	"encoding/json"
	"fmt"
	"math"
)

type tagPayload struct {
	Result []struct {
		Tags []struct {
			Tag        string   `json:"tag"`
			Confidence *float64 `json:"confidence"`
		} `json:"tags"`
	} `json:"result"`
}

type colorPayload []struct {
	Colors map[string]struct {
		Coverage *float64 `json:"coverage"`
		RGB      *struct {
			Red   *float64 `json:"red"`
			Green *float64 `json:"green"`
			Blue  *float64 `json:"blue"`
		} `json:"rgb"`
	} `json:"colors"`
}

// Normalize maps a decoded classifier record to a feature set of the given kind.
// An empty record yields an empty set. The returned set is not sorted.
func Normalize(record []byte, kind Kind) (Set, error) {
	set := Set{Kind: kind}
	if len(record) == 0 {
		return set, nil
	}
	switch kind {
	case KindTag:
		tags, err := normalizeTags(record)
		set.Tags = tags
		return set, err
	case KindColor:
		colors, err := normalizeColors(record)
		set.Colors = colors
		return set, err
	default:
		return set, fmt.Errorf("normalize: unknown kind %q", kind)
	}
}

func normalizeTags(record []byte) ([]TagFeature, error) {
	var payload tagPayload
	if err := json.Unmarshal(record, &payload); err != nil {
		return nil, fmt.Errorf("normalize tags: %w", err)
	}
	if len(payload.Result) == 0 {
		return nil, nil
	}
	tags := make([]TagFeature, 0, len(payload.Result[0].Tags))
	for _, entry := range payload.Result[0].Tags {
		confidence, err := unitValue(entry.Tag, "confidence", entry.Confidence)
		if err != nil {
			return nil, err
		}
		tags = append(tags, TagFeature{Name: entry.Tag, Confidence: confidence})
	}
	return tags, nil
}

// normalizeColors keeps the document order of the colors mapping; encoding/json
// would lose it when decoding into a map.
func normalizeColors(record []byte) ([]ColorFeature, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(record, &payload); err != nil {
		return nil, fmt.Errorf("normalize colors: %w", err)
	}
	if len(payload) == 0 {
		return nil, nil
	}
	var first struct {
		Colors json.RawMessage `json:"colors"`
	}
	if err := json.Unmarshal(payload[0], &first); err != nil {
		return nil, fmt.Errorf("normalize colors: %w", err)
	}
	if len(first.Colors) == 0 || string(first.Colors) == "null" {
		return nil, nil
	}
	names, err := objectKeys(first.Colors)
	if err != nil {
		return nil, fmt.Errorf("normalize colors: %w", err)
	}
	var entries colorPayload
	if err := json.Unmarshal(record, &entries); err != nil {
		return nil, fmt.Errorf("normalize colors: %w", err)
	}
	colors := make([]ColorFeature, 0, len(names))
	for _, name := range names {
		entry := entries[0].Colors[name]
		coverage, err := unitValue(name, "coverage", entry.Coverage)
		if err != nil {
			return nil, err
		}
		if entry.RGB == nil {
			return nil, &InvalidFeatureError{Feature: name, Field: "rgb", Value: nil}
		}
		red, err := channel(name, "red", entry.RGB.Red)
		if err != nil {
			return nil, err
		}
		green, err := channel(name, "green", entry.RGB.Green)
		if err != nil {
			return nil, err
		}
		blue, err := channel(name, "blue", entry.RGB.Blue)
		if err != nil {
			return nil, err
		}
		colors = append(colors, ColorFeature{Name: name, Coverage: coverage, Red: red, Green: green, Blue: blue})
	}
	return colors, nil
}

func objectKeys(raw json.RawMessage) ([]string, error) {
	var ordered orderedKeys
	if err := json.Unmarshal(raw, &ordered); err != nil {
		return nil, err
	}
	return ordered, nil
}

// channel requires an integer in [0,255]. Absent values are rejected rather
// than read as zero.
func channel(feature, field string, value *float64) (int, error) {
	if value == nil {
		return 0, &InvalidFeatureError{Feature: feature, Field: field, Value: nil}
	}
	v := *value
	if v != math.Trunc(v) || v < 0 || v > 255 {
		return 0, &InvalidFeatureError{Feature: feature, Field: field, Value: v}
	}
	return int(v), nil
}

func unitValue(feature, field string, value *float64) (float64, error) {
	if value == nil {
		return 0, &InvalidFeatureError{Feature: feature, Field: field, Value: nil}
	}
	if *value < 0 || *value > 1 {
		return 0, &InvalidFeatureError{Feature: feature, Field: field, Value: *value}
	}
	return *value, nil
}
