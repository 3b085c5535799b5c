package features

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestAggregateSortsDescendingAndStable(t *testing.T) {
	a := Set{Kind: KindTag, Tags: []TagFeature{{"a1", 0.5}, {"a2", 0.9}}}
	b := Set{Kind: KindTag, Tags: []TagFeature{{"b1", 0.5}, {"b2", 0.1}, {"b3", 0.95}}}

	out, err := Aggregate(KindTag, []Set{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"b3", "a2", "a1", "b1", "b2"}
	if len(out.Tags) != len(want) {
		t.Fatalf("expected %d tags, got %d", len(want), len(out.Tags))
	}
	for i, name := range want {
		if out.Tags[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, out.Tags[i].Name)
		}
	}
}

func TestAggregateNeverDropsFeatures(t *testing.T) {
	var sets []Set
	total := 0
	for i := 0; i < 4; i++ {
		set := Set{Kind: KindTag}
		for j := 0; j < i+2; j++ {
			set.Tags = append(set.Tags, TagFeature{Name: fmt.Sprintf("t%d-%d", i, j), Confidence: float64((i*7+j*3)%10) / 10})
			total++
		}
		sets = append(sets, set)
	}

	out, err := Aggregate(KindTag, sets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Tags) != total {
		t.Fatalf("expected %d tags, got %d", total, len(out.Tags))
	}
	for i := 1; i < len(out.Tags); i++ {
		if out.Tags[i].Confidence > out.Tags[i-1].Confidence {
			t.Fatalf("tags not sorted at %d: %v > %v", i, out.Tags[i].Confidence, out.Tags[i-1].Confidence)
		}
	}
}

func TestAggregateColorsByCoverage(t *testing.T) {
	sets := []Set{
		{Kind: KindColor, Colors: []ColorFeature{{Name: "gray", Coverage: 0.2}}},
		{Kind: KindColor, Colors: []ColorFeature{{Name: "black", Coverage: 0.5}, {Name: "white", Coverage: 0.2}}},
	}
	out, err := Aggregate(KindColor, sets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"black", "gray", "white"}
	for i, name := range want {
		if out.Colors[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, out.Colors[i].Name)
		}
	}
}

func TestAggregateRejectsMixedKinds(t *testing.T) {
	_, err := Aggregate(KindTag, []Set{{Kind: KindTag}, {Kind: KindColor}})
	if err == nil {
		t.Fatal("expected error for mixed kinds")
	}
}

func TestCollectAbortsOnMandatoryFailure(t *testing.T) {
	failure := errors.New("classifier b failed")
	outcomes := []Outcome{
		{ClassifierID: "a", Set: Set{Kind: KindTag, Tags: []TagFeature{{"x", 0.3}}}},
		{ClassifierID: "b", Err: failure},
	}
	_, _, err := Collect(KindTag, outcomes)
	if !errors.Is(err, failure) {
		t.Fatalf("expected failure of b, got %v", err)
	}
}

func TestCollectPrefersRootCauseOverCancellation(t *testing.T) {
	failure := errors.New("classifier b failed")
	outcomes := []Outcome{
		{ClassifierID: "a", Err: fmt.Errorf("call a: %w", context.Canceled)},
		{ClassifierID: "b", Err: failure},
	}
	_, _, err := Collect(KindTag, outcomes)
	if !errors.Is(err, failure) {
		t.Fatalf("expected failure of b, got %v", err)
	}
}

func TestCollectSkipsOptionalFailures(t *testing.T) {
	outcomes := []Outcome{
		{ClassifierID: "a", Set: Set{Kind: KindTag, Tags: []TagFeature{{"x", 0.3}}}},
		{ClassifierID: "b", Optional: true, Err: errors.New("down")},
		{ClassifierID: "c", Set: Set{Kind: KindTag, Tags: []TagFeature{{"y", 0.8}}}},
	}
	set, skipped, err := Collect(KindTag, outcomes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(skipped) != 1 || skipped[0].ClassifierID != "b" {
		t.Fatalf("expected b to be skipped, got %+v", skipped)
	}
	if len(set.Tags) != 2 || set.Tags[0].Name != "y" {
		t.Fatalf("unexpected aggregate: %+v", set.Tags)
	}
}
