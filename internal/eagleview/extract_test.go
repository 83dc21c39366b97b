package eagleview

import "testing"

func TestLookupPrefersEarlierCandidates(t *testing.T) {
	obj := map[string]any{
		"start_date": "2025-01-02",
		"startDate":  "1999-01-01",
	}
	got, ok := lookupString(obj, "startDate")
	if !ok || got != "2025-01-02" {
		t.Fatalf("expected snake_case candidate to win, got %q ok=%v", got, ok)
	}
}

func TestLookupFallsBackToLaterCandidates(t *testing.T) {
	obj := map[string]any{"calculatedGsd": map[string]any{"value": 0.03}}
	gsd, ok := lookupObject(obj, "gsd")
	if !ok {
		t.Fatal("expected camelCase fallback to match")
	}
	v, ok := lookupFloat(gsd, "gsdValue")
	if !ok || v != 0.03 {
		t.Fatalf("expected value 0.03, got %f ok=%v", v, ok)
	}
}

func TestLookupMissingAndWrongTypes(t *testing.T) {
	obj := map[string]any{"urn": 42, "zoom_range": "not-an-object"}

	if _, ok := lookupString(obj, "urn"); ok {
		t.Fatal("expected a non-string urn to be rejected")
	}
	if _, ok := lookupObject(obj, "zoomRange"); ok {
		t.Fatal("expected a non-object zoom range to be rejected")
	}
	if _, ok := lookup(obj, "captures"); ok {
		t.Fatal("expected a miss for an absent field")
	}
}

func TestParseCapture(t *testing.T) {
	c := parseCapture(map[string]any{
		"urn":        "cap-1",
		"start_date": "2025-03-14",
		"end_date":   "2025-03-15",
		"labels":     []any{"leaf_off", 42, "nadir"},
	})
	if c.URN != "cap-1" || c.StartDate != "2025-03-14" || c.EndDate != "2025-03-15" {
		t.Fatalf("unexpected capture: %+v", c)
	}
	if len(c.Labels) != 2 || c.Labels[0] != "leaf_off" || c.Labels[1] != "nadir" {
		t.Fatalf("expected non-string labels dropped, got %v", c.Labels)
	}

	empty := parseCapture(map[string]any{})
	if empty.URN != "" || empty.StartDate != "" || empty.EndDate != "" || empty.Labels != nil {
		t.Fatalf("expected zero capture for empty object, got %+v", empty)
	}
}

func TestParseOrthoImageDefaults(t *testing.T) {
	ref := parseOrthoImage(map[string]any{"urn": "x"})
	if ref.GSDMeters != DefaultGSDMeters || ref.MaxZoomLevel != DefaultMaxZoom {
		t.Fatalf("expected defaults for missing metadata, got %+v", ref)
	}

	ref = parseOrthoImage(map[string]any{
		"urn":            "y",
		"calculated_gsd": map[string]any{"value": 0.045},
		"zoom_range":     map[string]any{"maximum_zoom_level": float64(20)},
	})
	if ref.GSDMeters != 0.045 || ref.MaxZoomLevel != 20 {
		t.Fatalf("expected parsed metadata, got %+v", ref)
	}
}
