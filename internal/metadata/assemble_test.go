package metadata

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/example/assetmeta/internal/features"
)

func TestHexColor(t *testing.T) {
	tests := []struct {
		r, g, b int
		want    string
	}{
		{10, 0, 255, "#0a00ff"},
		{0, 0, 0, "#000000"},
		{255, 255, 255, "#ffffff"},
		{171, 205, 239, "#abcdef"},
	}
	for _, tt := range tests {
		if got := HexColor(tt.r, tt.g, tt.b); got != tt.want {
			t.Fatalf("HexColor(%d,%d,%d) = %s, want %s", tt.r, tt.g, tt.b, got, tt.want)
		}
	}
}

func TestPercentStringRoundsHalfUp(t *testing.T) {
	tests := map[float64]string{
		0.595: "60%",
		0.004: "0%",
		0.005: "1%",
		0.6:   "60%",
		1:     "100%",
		0:     "0%",
		0.125: "13%",
	}
	for in, want := range tests {
		if got := PercentString(in); got != want {
			t.Fatalf("PercentString(%v) = %s, want %s", in, got, want)
		}
	}
}

func TestAssembleTags(t *testing.T) {
	set := features.Set{Kind: features.KindTag, Tags: []features.TagFeature{
		{Name: "sea", Confidence: 0.9},
		{Name: "sand", Confidence: 0.7},
	}}
	tree := Assemble(set)

	value, ok := tree.Lookup(PropTags)
	if !ok {
		t.Fatal("tags property missing")
	}
	structs := value.([]Struct)
	want := []Struct{
		{{Name: "name", Value: "sea"}, {Name: "percentage", Value: 0.9}},
		{{Name: "name", Value: "sand"}, {Name: "percentage", Value: 0.7}},
	}
	if !reflect.DeepEqual(structs, want) {
		t.Fatalf("unexpected tags: %+v", structs)
	}
}

func TestAssembleColorsParallelProjections(t *testing.T) {
	set := features.Set{Kind: features.KindColor, Colors: []features.ColorFeature{
		{Name: "blue", Coverage: 0.595, Red: 10, Green: 0, Blue: 255},
		{Name: "black", Coverage: 0.004, Red: 0, Green: 0, Blue: 0},
	}}
	tree := Assemble(set)

	names, _ := tree.Lookup(PropColorNames)
	if !reflect.DeepEqual(names, []string{"blue, 60%", "black, 0%"}) {
		t.Fatalf("unexpected names: %v", names)
	}
	web, _ := tree.Lookup(PropWebColors)
	if !reflect.DeepEqual(web, []string{"#0a00ff, 60%", "#000000, 0%"}) {
		t.Fatalf("unexpected web colors: %v", web)
	}
	colors, _ := tree.Lookup(PropColors)
	structs := colors.([]Struct)
	if len(structs) != 2 || structs[0][0].Value != "blue" || structs[1][0].Value != "black" {
		t.Fatalf("unexpected color structs: %+v", structs)
	}
	if structs[0][2].Name != "red" || structs[0][2].Value != 10 {
		t.Fatalf("unexpected red field: %+v", structs[0][2])
	}
}

func TestJSONSerializerKeepsOrder(t *testing.T) {
	tree := Assemble(features.Set{Kind: features.KindTag, Tags: []features.TagFeature{{Name: "sky", Confidence: 0.5}}})

	out, err := JSONSerializer{}.Serialize(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"@namespaces":{"assetmeta":"` + NamespaceURI + `"},"assetmeta:tags":[{"name":"sky","percentage":0.5}]}`
	if string(out) != want {
		t.Fatalf("unexpected document:\n%s\nwant:\n%s", out, want)
	}

	indented, err := JSONSerializer{Indent: "  "}.Serialize(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !json.Valid(indented) {
		t.Fatalf("indented output is not valid JSON: %s", indented)
	}
}
