package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const homepageHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>odyssey navigation</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #000;
            color: #0f0;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0ff; text-decoration: none; }
        a:hover { text-decoration: underline; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">odyssey navigation</span>

Live turn-by-turn navigation and map sync for Odyssey itineraries.

<span class="header">Places:</span>
  <a href="/api/v1/places/search?q=Ahmedabad">GET /api/v1/places/search?q={city}</a>     - Search places by city
  <a href="/api/v1/places/popular">GET /api/v1/places/popular</a>               - Popular destinations
  <a href="/api/v1/places/categories">GET /api/v1/places/categories</a>            - Place categories
  <a href="/api/v1/places/nearby?lat=23.0225&amp;lng=72.5714">GET /api/v1/places/nearby?lat=&amp;lng=</a>     - Places around a point
  GET /api/v1/places/{id}                  - Place details

<span class="header">Itinerary:</span>
  <a href="/api/v1/itinerary">GET /api/v1/itinerary</a>                    - Saved places
  POST /api/v1/itinerary                   - Save a place
  DELETE /api/v1/itinerary/{id}            - Remove a place

<span class="header">Navigation:</span>
  POST /api/v1/sessions                    - Start navigating
  GET  /api/v1/sessions/{id}               - Session state, guidance and map
  POST /api/v1/sessions/{id}/fixes         - Push a device position
  POST /api/v1/sessions/{id}/commands      - toggle_follow, recenter, toggle_mode, retry
  GET  /api/v1/sessions/{id}/stream        - WebSocket event stream
  GET  /api/v1/sessions/{id}/kml           - Export route as KML

<span class="header">Operations:</span>
  <a href="/healthz">GET /healthz</a>
  <a href="/metrics">GET /metrics</a>
</pre>
</body>
</html>`

func (s *Server) homepage(c echo.Context) error {
	return c.HTML(http.StatusOK, homepageHTML)
}
