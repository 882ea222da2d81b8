package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/meltforce/mapty/internal/models"
)

type memPersist struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	sets    int
	failSet bool
}

func newMemPersist() *memPersist {
	return &memPersist{blobs: make(map[string][]byte)}
}

func (p *memPersist) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.blobs[key]
	return b, ok, nil
}

// Set fails on a cancelled context, as the network-backed stores do.
func (p *memPersist) Set(ctx context.Context, key string, blob []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.failSet {
		return errors.New("disk full")
	}
	p.sets++
	p.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (p *memPersist) Remove(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.blobs, key)
	return nil
}

func (p *memPersist) decoded(t *testing.T) []*models.Workout {
	t.Helper()
	p.mu.Lock()
	blob, ok := p.blobs[DefaultStorageKey]
	p.mu.Unlock()
	if !ok {
		t.Fatal("no persisted blob")
	}
	ws, err := models.DecodeWorkouts(blob)
	if err != nil {
		t.Fatalf("decoding persisted blob: %v", err)
	}
	return ws
}

type marker struct {
	coords models.Coordinates
	popup  string
	opts   PopupOptions
}

type pan struct {
	coords  models.Coordinates
	zoom    int
	animate bool
}

type fakeMap struct {
	mu          sync.Mutex
	initialized bool
	center      models.Coordinates
	zoom        int
	handler     func(models.Coordinates)
	markers     map[MarkerHandle]marker
	next        int
	pans        []pan
	failAdd     bool
}

func newFakeMap() *fakeMap {
	return &fakeMap{markers: make(map[MarkerHandle]marker)}
}

func (m *fakeMap) Initialize(_ context.Context, center models.Coordinates, zoom int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	m.center = center
	m.zoom = zoom
	return nil
}

func (m *fakeMap) OnClick(handler func(models.Coordinates)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

func (m *fakeMap) PanTo(_ context.Context, coords models.Coordinates, zoom int, animate bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pans = append(m.pans, pan{coords, zoom, animate})
	return nil
}

func (m *fakeMap) AddMarker(_ context.Context, coords models.Coordinates, popup string, opts PopupOptions) (MarkerHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd {
		return "", errors.New("map detached")
	}
	m.next++
	h := MarkerHandle(fmt.Sprintf("m%d", m.next))
	m.markers[h] = marker{coords: coords, popup: popup, opts: opts}
	return h, nil
}

func (m *fakeMap) RemoveMarker(_ context.Context, handle MarkerHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[handle]; !ok {
		return fmt.Errorf("no marker %s", handle)
	}
	delete(m.markers, handle)
	return nil
}

func (m *fakeMap) click(coords models.Coordinates) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(coords)
}

func (m *fakeMap) popups() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, mk := range m.markers {
		out[mk.popup]++
	}
	return out
}

func (m *fakeMap) markerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markers)
}

// fakeLocator answers immediately, or blocks on release when it is non-nil.
type fakeLocator struct {
	coords  models.Coordinates
	err     error
	release chan struct{}
}

func (l *fakeLocator) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	if l.release != nil {
		select {
		case <-l.release:
		case <-ctx.Done():
			return models.Coordinates{}, ctx.Err()
		}
	}
	return l.coords, l.err
}

var fixedNow = time.Date(2026, time.March, 7, 18, 0, 0, 0, time.UTC)

type harness struct {
	store   *Store
	persist *memPersist
	surface *fakeMap
	locator *fakeLocator
}

func newHarness(t *testing.T, locator *fakeLocator) *harness {
	t.Helper()
	if locator == nil {
		locator = &fakeLocator{coords: models.Coordinates{Lat: 38.7, Lng: -9.1}}
	}
	h := &harness{persist: newMemPersist(), surface: newFakeMap(), locator: locator}

	n := 0
	h.store = New(h.persist, h.surface, h.locator, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("w%d", n) }),
	)
	return h
}

// start runs Start and waits for the location fetch to resolve.
func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.store.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitSettled(t, h.store)
}

func waitSettled(t *testing.T, s *Store) {
	t.Helper()
	select {
	case <-s.Settled():
	case <-time.After(2 * time.Second):
		t.Fatal("location fetch did not settle")
	}
}

func newReadyHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, nil)
	h.start(t)
	if st := h.store.Status().State; st != StateReady {
		t.Fatalf("state = %s, want ready", st)
	}
	return h
}
