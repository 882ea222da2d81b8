package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/meltforce/mapty/internal/models"
)

// HTTPProvider looks the position up from an IP geolocation endpoint.
// It accepts both {"lat","lon"} and {"latitude","longitude"} bodies.
type HTTPProvider struct {
	url        string
	httpClient *http.Client
	log        *slog.Logger
}

func NewHTTPProvider(url string, timeout time.Duration, log *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type lookupResponse struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (p *HTTPProvider) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("geolocation: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("geolocation: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("geolocation: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Coordinates{}, fmt.Errorf("geolocation: lookup returned %d: %s", resp.StatusCode, body)
	}

	var lr lookupResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return models.Coordinates{}, fmt.Errorf("geolocation: decode: %w", err)
	}
	if lr.Status == "fail" {
		return models.Coordinates{}, fmt.Errorf("geolocation: lookup failed: %s", lr.Message)
	}

	var c models.Coordinates
	switch {
	case lr.Lat != nil && lr.Lon != nil:
		c = models.Coordinates{Lat: *lr.Lat, Lng: *lr.Lon}
	case lr.Latitude != nil && lr.Longitude != nil:
		c = models.Coordinates{Lat: *lr.Latitude, Lng: *lr.Longitude}
	default:
		return models.Coordinates{}, fmt.Errorf("geolocation: response has no coordinates")
	}
	if !c.Valid() {
		return models.Coordinates{}, fmt.Errorf("%w: %v,%v", ErrInvalidCoordinates, c.Lat, c.Lng)
	}

	p.log.Debug("geolocation resolved", "lat", c.Lat, "lng", c.Lng)
	return c, nil
}
