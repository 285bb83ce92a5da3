package mapview

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-kml"
)

const routeStyleID = "route-line"

// WriteKML exports the canvas markers and route line as a KML document
func (c *Canvas) WriteKML(w io.Writer, name string) error {
	s := c.Snapshot()
	if s.Removed {
		return ErrSurfaceRemoved
	}

	doc := kml.Document(kml.Name(name))

	if len(s.Route) > 1 && s.RouteStyle != nil {
		lineColor, err := parseHexColor(s.RouteStyle.Color, s.RouteStyle.Opacity)
		if err != nil {
			return err
		}
		style := kml.SharedStyle(routeStyleID,
			kml.LineStyle(
				kml.Color(lineColor),
				kml.Width(float64(s.RouteStyle.Weight)),
			),
		)

		coords := make([]kml.Coordinate, len(s.Route))
		for i, p := range s.Route {
			coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
		}

		doc.Add(
			style,
			kml.Placemark(
				kml.Name("Route"),
				kml.StyleURL(style.URL()),
				kml.LineString(
					kml.Tessellate(true),
					kml.Coordinates(coords...),
				),
			),
		)
	}

	for _, m := range s.Markers {
		placemark := kml.Placemark(kml.Name(markerTitle(m)))
		if m.Options.Popup != "" {
			placemark.Add(kml.Description(m.Options.Popup))
		}
		placemark.Add(
			kml.Style(kml.IconStyle(
				kml.Scale(float64(m.Options.Icon.Size[0])/24),
				kml.Icon(kml.Href(m.Options.Icon.Name)),
			)),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: m.Position.Longitude, Lat: m.Position.Latitude})),
		)
		doc.Add(placemark)
	}

	return kml.KML(doc).WriteIndent(w, "", "  ")
}

func markerTitle(m Marker) string {
	if m.Options.Tooltip != "" {
		return m.Options.Tooltip
	}
	return string(m.ID)
}

// parseHexColor converts "#rrggbb" and an opacity in [0,1] to a color
func parseHexColor(hex string, opacity float64) (color.RGBA, error) {
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	alpha := math.Round(math.Max(0, math.Min(1, opacity)) * 255)
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: uint8(alpha),
	}, nil
}
