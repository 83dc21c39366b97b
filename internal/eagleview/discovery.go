package eagleview

import (
	"context"
	"fmt"
	"math"
)

// searchBoxMeters is the side length of the square polygon used to
// query coverage around a point.
const searchBoxMeters = 150.0

// metersPerDegreeLat is the approximate ground length of one degree of
// latitude, good enough for a 150 m search box.
const metersPerDegreeLat = 111320.0

// rankRequest is the wire body for the capture discovery call. The
// shapes are part of the provider contract and must round-trip
// bit-exact.
type rankRequest struct {
	Polygon       ewktPolygon   `json:"polygon"`
	View          rankView      `json:"view"`
	ResponseProps responseProps `json:"response_props"`
}

type ewktPolygon struct {
	EWKT ewktValue `json:"ewkt"`
}

type ewktValue struct {
	Value string `json:"value"`
}

type rankView struct {
	Orthos           struct{} `json:"orthos"`
	MaxImagesPerView int      `json:"max_images_per_view"`
}

type responseProps struct {
	CalculatedGSD bool `json:"calculated_gsd"`
	ZoomRange     bool `json:"zoom_range"`
}

// orthomosaicSearchRequest is the wire body for the fallback search.
type orthomosaicSearchRequest struct {
	Location struct {
		Area ewktPolygon `json:"area"`
	} `json:"location"`
	Page struct {
		Size int `json:"size"`
	} `json:"page"`
}

// DiscoverOrthoImage resolves a point to the best available orthophoto
// capture. The primary strategy ranks captures at the location; when
// no capture carries an ortho image, the orthomosaic search runs as a
// degraded fallback. Both strategies missing is a normal "no imagery"
// outcome reported as found=false, never an error.
func (c *Client) DiscoverOrthoImage(ctx context.Context, lat, lng float64) (DiscoveryResult, bool, error) {
	polygon := squareEWKT(lat, lng, searchBoxMeters)

	result, found, err := c.rankCaptures(ctx, polygon)
	if err != nil {
		return DiscoveryResult{}, false, err
	}
	if found {
		return result, true, nil
	}

	c.logger.Debug().Float64("lat", lat).Float64("lng", lng).
		Msg("no ortho capture at location, trying orthomosaic search")

	return c.searchOrthomosaics(ctx, polygon)
}

// rankCaptures runs the primary discovery strategy and selects the
// first capture whose ortho-image list is non-empty.
func (c *Client) rankCaptures(ctx context.Context, polygon string) (DiscoveryResult, bool, error) {
	body := rankRequest{
		Polygon:       ewktPolygon{EWKT: ewktValue{Value: polygon}},
		View:          rankView{MaxImagesPerView: 1},
		ResponseProps: responseProps{CalculatedGSD: true, ZoomRange: true},
	}

	obj, err := c.postJSON(ctx, discoveryRankPath, body)
	if err != nil {
		return DiscoveryResult{}, false, err
	}

	captures, _ := lookupList(obj, "captures")
	for _, entry := range captures {
		wrapper, ok := asObject(entry)
		if !ok {
			continue
		}

		orthos, ok := lookupObject(wrapper, "orthos")
		if !ok {
			continue
		}
		images, ok := lookupList(orthos, "images")
		if !ok || len(images) == 0 {
			continue
		}
		img, ok := asObject(images[0])
		if !ok {
			continue
		}
		ref := parseOrthoImage(img)
		if ref.URN == "" {
			continue
		}

		captureDate := CaptureDateUnknown
		if obj, ok := lookupObject(wrapper, "capture"); ok {
			if capture := parseCapture(obj); capture.StartDate != "" {
				captureDate = NormalizeCaptureDate(capture.StartDate)
			}
		}

		return DiscoveryResult{
			ImageURN:    ref.URN,
			CaptureDate: captureDate,
			GSDMeters:   ref.GSDMeters,
			MaxZoom:     ref.MaxZoomLevel,
		}, true, nil
	}

	return DiscoveryResult{}, false, nil
}

// parseCapture extracts the capture entity from a rank response entry.
func parseCapture(obj map[string]any) Capture {
	var c Capture
	c.URN, _ = lookupString(obj, "urn")
	c.StartDate, _ = lookupString(obj, "startDate")
	c.EndDate, _ = lookupString(obj, "endDate")
	if labels, ok := lookupList(obj, "labels"); ok {
		for _, l := range labels {
			if s, ok := l.(string); ok {
				c.Labels = append(c.Labels, s)
			}
		}
	}
	return c
}

// parseOrthoImage extracts an ortho image reference, applying the
// documented defaults when metadata is absent.
func parseOrthoImage(img map[string]any) OrthoImageRef {
	ref := OrthoImageRef{
		GSDMeters:    DefaultGSDMeters,
		MaxZoomLevel: DefaultMaxZoom,
	}

	ref.URN, _ = lookupString(img, "urn")

	if gsd, ok := lookupObject(img, "gsd"); ok {
		if v, ok := lookupFloat(gsd, "gsdValue"); ok && v > 0 {
			ref.GSDMeters = v
		}
	}
	if zr, ok := lookupObject(img, "zoomRange"); ok {
		if v, ok := lookupFloat(zr, "maxZoom"); ok && v > 0 {
			ref.MaxZoomLevel = int(v)
		}
	}
	return ref
}

// searchOrthomosaics runs the fallback strategy. A hit yields a
// degraded-fidelity placeholder result: the capture date is unknown
// and resolution metadata uses the documented defaults.
func (c *Client) searchOrthomosaics(ctx context.Context, polygon string) (DiscoveryResult, bool, error) {
	var body orthomosaicSearchRequest
	body.Location.Area = ewktPolygon{EWKT: ewktValue{Value: polygon}}
	body.Page.Size = 1

	obj, err := c.postJSON(ctx, orthomosaicSearchPath, body)
	if err != nil {
		return DiscoveryResult{}, false, err
	}

	mosaics, _ := lookupList(obj, "orthomosaics")
	for _, entry := range mosaics {
		m, ok := asObject(entry)
		if !ok {
			continue
		}
		urn, ok := lookupString(m, "urn")
		if !ok || urn == "" {
			continue
		}
		return DiscoveryResult{
			ImageURN:    urn,
			CaptureDate: CaptureDateUnknown,
			GSDMeters:   DefaultGSDMeters,
			MaxZoom:     DefaultMaxZoom,
		}, true, nil
	}

	return DiscoveryResult{}, false, nil
}

// squareEWKT builds an EWKT polygon for a square of the given side
// length in meters centered on the point.
func squareEWKT(lat, lng, sideMeters float64) string {
	halfLat := sideMeters / 2 / metersPerDegreeLat
	halfLng := sideMeters / 2 / (metersPerDegreeLat * math.Cos(lat*math.Pi/180))

	west := lng - halfLng
	east := lng + halfLng
	south := lat - halfLat
	north := lat + halfLat

	return fmt.Sprintf("SRID=4326;POLYGON((%f %f, %f %f, %f %f, %f %f, %f %f))",
		west, south, east, south, east, north, west, north, west, south)
}
