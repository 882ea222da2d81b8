// Package geo supplies the starting map position.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meltforce/mapty/internal/config"
	"github.com/meltforce/mapty/internal/models"
	"github.com/meltforce/mapty/internal/tracker"
)

// ErrInvalidCoordinates is returned for a position outside lat [-90,90] / lng [-180,180].
var ErrInvalidCoordinates = errors.New("coordinates out of range")

var (
	_ tracker.LocationProvider = Static{}
	_ tracker.LocationProvider = (*Browser)(nil)
	_ tracker.LocationProvider = (*HTTPProvider)(nil)
)

// Static always answers with a fixed position.
type Static struct {
	Coords models.Coordinates
}

func (s Static) CurrentPosition(context.Context) (models.Coordinates, error) {
	return s.Coords, nil
}

// Browser waits for the page to report its geolocation result. Until then
// CurrentPosition blocks, possibly forever.
type Browser struct {
	mu     sync.Mutex
	ready  chan struct{}
	done   bool
	coords models.Coordinates
	err    error
}

func NewBrowser() *Browser {
	return &Browser{ready: make(chan struct{})}
}

func (b *Browser) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	b.mu.Lock()
	ready := b.ready
	b.mu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return models.Coordinates{}, ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.coords, b.err
}

// Resolve answers pending and future requests with coords.
func (b *Browser) Resolve(coords models.Coordinates) error {
	if !coords.Valid() {
		return fmt.Errorf("%w: %v,%v", ErrInvalidCoordinates, coords.Lat, coords.Lng)
	}
	b.settle(coords, nil)
	return nil
}

// Fail answers pending and future requests with err, e.g. a denied permission.
func (b *Browser) Fail(err error) {
	b.settle(models.Coordinates{}, err)
}

func (b *Browser) settle(coords models.Coordinates, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.coords, b.err = coords, err
	if !b.done {
		b.done = true
		close(b.ready)
	}
}

// Pending reports whether no answer has arrived yet.
func (b *Browser) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.done
}

// Reset forgets the last answer so the next request waits for the page again.
func (b *Browser) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		b.ready = make(chan struct{})
		b.done = false
		b.coords, b.err = models.Coordinates{}, nil
	}
}

// New builds the provider selected by cfg.Mode. The returned *Browser is
// non-nil only in browser mode.
func New(cfg config.LocationConfig, log *slog.Logger) (tracker.LocationProvider, *Browser) {
	switch cfg.Mode {
	case config.LocationStatic:
		log.Info("using static location", "lat", cfg.Lat, "lng", cfg.Lng)
		return Static{Coords: models.Coordinates{Lat: cfg.Lat, Lng: cfg.Lng}}, nil
	case config.LocationHTTP:
		log.Info("using http geolocation", "url", cfg.URL)
		return NewHTTPProvider(cfg.URL, cfg.Timeout, log), nil
	default:
		b := NewBrowser()
		return b, b
	}
}
