package features

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeTagsKeepsFixtureOrder(t *testing.T) {
	record := []byte(`{"result":[{"tags":[
		{"tag":"beach","confidence":0.4},
		{"tag":"sea","confidence":0.9},
		{"tag":"sand","confidence":0.7}
	]}]}`)

	set, err := Normalize(record, KindTag)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []TagFeature{{"beach", 0.4}, {"sea", 0.9}, {"sand", 0.7}}
	if len(set.Tags) != len(want) {
		t.Fatalf("expected %d tags, got %d", len(want), len(set.Tags))
	}
	for i := range want {
		if set.Tags[i] != want[i] {
			t.Fatalf("tag %d: expected %+v, got %+v", i, want[i], set.Tags[i])
		}
	}
}

func TestNormalizeTagsEmptyResult(t *testing.T) {
	for _, record := range []string{``, `{}`, `{"result":[]}`, `{"result":[{"tags":[]}]}`} {
		set, err := Normalize([]byte(record), KindTag)
		if err != nil {
			t.Fatalf("record %q: unexpected error: %v", record, err)
		}
		if set.Len() != 0 {
			t.Fatalf("record %q: expected empty set, got %d", record, set.Len())
		}
	}
}

func TestNormalizeSingleColor(t *testing.T) {
	record := []byte(`[{"colors":{"red":{"coverage":0.6,"rgb":{"red":200,"green":10,"blue":10}}}}]`)

	set, err := Normalize(record, KindColor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Colors) != 1 {
		t.Fatalf("expected 1 color, got %d", len(set.Colors))
	}
	want := ColorFeature{Name: "red", Coverage: 0.6, Red: 200, Green: 10, Blue: 10}
	if set.Colors[0] != want {
		t.Fatalf("expected %+v, got %+v", want, set.Colors[0])
	}
}

func TestNormalizeColorsKeepsDocumentOrder(t *testing.T) {
	record := []byte(`[{"colors":{
		"white":{"coverage":0.1,"rgb":{"red":255,"green":255,"blue":255}},
		"black":{"coverage":0.5,"rgb":{"red":0,"green":0,"blue":0}},
		"gray":{"coverage":0.2,"rgb":{"red":128,"green":128,"blue":128}}
	}}]`)

	set, err := Normalize(record, KindColor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := []string{"white", "black", "gray"}
	for i, name := range names {
		if set.Colors[i].Name != name {
			t.Fatalf("color %d: expected %s, got %s", i, name, set.Colors[i].Name)
		}
	}
}

func TestNormalizeColorsRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		record string
		field  string
	}{
		{"red channel", `[{"colors":{"c":{"coverage":0.5,"rgb":{"red":300,"green":0,"blue":0}}}}]`, "red"},
		{"negative green", `[{"colors":{"c":{"coverage":0.5,"rgb":{"red":0,"green":-1,"blue":0}}}}]`, "green"},
		{"fractional blue", `[{"colors":{"c":{"coverage":0.5,"rgb":{"red":0,"green":0,"blue":1.5}}}}]`, "blue"},
		{"coverage", `[{"colors":{"c":{"coverage":1.2,"rgb":{"red":0,"green":0,"blue":0}}}}]`, "coverage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.record), KindColor)
			var invalid *InvalidFeatureError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidFeatureError, got %v", err)
			}
			if invalid.Field != tt.field {
				t.Fatalf("expected field %s, got %s", tt.field, invalid.Field)
			}
		})
	}
}

func TestNormalizeRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		record string
		field  string
	}{
		{"empty color", KindColor, `[{"colors":{"c":{}}}]`, "coverage"},
		{"no rgb", KindColor, `[{"colors":{"c":{"coverage":0.5}}}]`, "rgb"},
		{"no blue", KindColor, `[{"colors":{"c":{"coverage":0.5,"rgb":{"red":1,"green":2}}}}]`, "blue"},
		{"null red", KindColor, `[{"colors":{"c":{"coverage":0.5,"rgb":{"red":null,"green":2,"blue":3}}}}]`, "red"},
		{"no confidence", KindTag, `{"result":[{"tags":[{"tag":"sea"}]}]}`, "confidence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize([]byte(tt.record), tt.kind)
			var invalid *InvalidFeatureError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidFeatureError, got %v", err)
			}
			if invalid.Field != tt.field || invalid.Value != nil {
				t.Fatalf("expected missing %s, got field %s value %v", tt.field, invalid.Field, invalid.Value)
			}
			if !strings.Contains(err.Error(), "is missing") {
				t.Fatalf("unexpected message: %v", err)
			}
		})
	}
}

func TestNormalizeMalformedJSON(t *testing.T) {
	if _, err := Normalize([]byte(`{"result":`), KindTag); err == nil {
		t.Fatal("expected error for truncated tag payload")
	}
	if _, err := Normalize([]byte(`{"colors":{}}`), KindColor); err == nil {
		t.Fatal("expected error for color payload that is not an array")
	}
}
