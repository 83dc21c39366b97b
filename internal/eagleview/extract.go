package eagleview

// Defensive extraction from the provider's loosely-typed discovery
// JSON. Each canonical field maps to an ordered list of candidate
// provider keys, evaluated by one generic lookup; provider payloads
// have historically drifted between snake_case and camelCase spellings.

// fieldCandidates maps a canonical field name to provider keys in
// preference order.
var fieldCandidates = map[string][]string{
	"urn":          {"urn", "id"},
	"startDate":    {"start_date", "startDate"},
	"endDate":      {"end_date", "endDate"},
	"gsd":          {"calculated_gsd", "calculatedGsd", "gsd"},
	"gsdValue":     {"value"},
	"labels":       {"labels"},
	"zoomRange":    {"zoom_range", "zoomRange"},
	"maxZoom":      {"maximum_zoom_level", "maximumZoomLevel", "max_zoom_level"},
	"captures":     {"captures"},
	"capture":      {"capture"},
	"orthos":       {"orthos"},
	"images":       {"images"},
	"orthomosaics": {"orthomosaics"},
}

// lookup returns the first candidate key present in the object for the
// canonical field name.
func lookup(obj map[string]any, field string) (any, bool) {
	for _, key := range fieldCandidates[field] {
		if v, ok := obj[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(obj map[string]any, field string) (string, bool) {
	v, ok := lookup(obj, field)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lookupFloat(obj map[string]any, field string) (float64, bool) {
	v, ok := lookup(obj, field)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func lookupObject(obj map[string]any, field string) (map[string]any, bool) {
	v, ok := lookup(obj, field)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func lookupList(obj map[string]any, field string) ([]any, bool) {
	v, ok := lookup(obj, field)
	if !ok {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

// asObject narrows a decoded JSON value to an object.
func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
