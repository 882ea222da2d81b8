// Package mapview holds the server-side view of the map: where it is centred,
// which markers are drawn and who listens for clicks. The HTTP surface
// publishes snapshots of it to the browser.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/meltforce/mapty/internal/models"
	"github.com/meltforce/mapty/internal/tracker"
)

// ErrNotInitialized is returned by operations that need a centred map.
var ErrNotInitialized = errors.New("map not initialized")

var _ tracker.MapSurface = (*Layer)(nil)

// Marker is one drawn workout marker.
type Marker struct {
	Handle tracker.MarkerHandle `json:"handle"`
	Coords models.Coordinates   `json:"coords"`
	Popup  string               `json:"popup"`
	Opts   tracker.PopupOptions `json:"options"`
	seq    uint64
}

// View is the camera position.
type View struct {
	Center  models.Coordinates `json:"center"`
	Zoom    int                `json:"zoom"`
	Animate bool               `json:"animate"`
}

// Snapshot is what the browser needs to redraw the map.
type Snapshot struct {
	Initialized bool     `json:"initialized"`
	View        View     `json:"view"`
	Markers     []Marker `json:"markers"`
	Version     uint64   `json:"version"`
}

// Layer is an in-process MapSurface.
type Layer struct {
	log *slog.Logger

	mu          sync.Mutex
	initialized bool
	view        View
	markers     map[tracker.MarkerHandle]Marker
	onClick     func(models.Coordinates)
	seq         uint64
	version     uint64
}

func NewLayer(log *slog.Logger) *Layer {
	return &Layer{log: log, markers: make(map[tracker.MarkerHandle]Marker)}
}

func (l *Layer) Initialize(_ context.Context, center models.Coordinates, zoom int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialized = true
	l.view = View{Center: center, Zoom: zoom}
	l.version++
	l.log.Debug("map initialized", "lat", center.Lat, "lng", center.Lng, "zoom", zoom)
	return nil
}

// OnClick replaces the click handler.
func (l *Layer) OnClick(handler func(models.Coordinates)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onClick = handler
}

func (l *Layer) PanTo(_ context.Context, coords models.Coordinates, zoom int, animate bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return ErrNotInitialized
	}
	l.view = View{Center: coords, Zoom: zoom, Animate: animate}
	l.version++
	return nil
}

func (l *Layer) AddMarker(_ context.Context, coords models.Coordinates, popup string, opts tracker.PopupOptions) (tracker.MarkerHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.initialized {
		return "", ErrNotInitialized
	}
	l.seq++
	h := tracker.MarkerHandle(uuid.NewString())
	l.markers[h] = Marker{Handle: h, Coords: coords, Popup: popup, Opts: opts, seq: l.seq}
	l.version++
	return h, nil
}

func (l *Layer) RemoveMarker(_ context.Context, handle tracker.MarkerHandle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.markers[handle]; !ok {
		return fmt.Errorf("unknown marker %s", handle)
	}
	delete(l.markers, handle)
	l.version++
	return nil
}

// Click dispatches a map click to the registered handler. It reports
// ErrNotInitialized before the map is centred.
func (l *Layer) Click(coords models.Coordinates) error {
	l.mu.Lock()
	handler, ok := l.onClick, l.initialized
	l.mu.Unlock()

	if !ok || handler == nil {
		return ErrNotInitialized
	}
	handler(coords)
	return nil
}

// Reset drops the view and markers so the next Initialize starts clean.
func (l *Layer) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialized = false
	l.view = View{}
	l.onClick = nil
	clear(l.markers)
	l.version++
}

// Snapshot returns the view and the markers in the order they were drawn.
func (l *Layer) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	markers := make([]Marker, 0, len(l.markers))
	for _, m := range l.markers {
		markers = append(markers, m)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].seq < markers[j].seq })

	return Snapshot{
		Initialized: l.initialized,
		View:        l.view,
		Markers:     markers,
		Version:     l.version,
	}
}
