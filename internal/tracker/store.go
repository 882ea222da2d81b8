// Package tracker owns the workout collection and keeps it in step with the
// map markers and the persisted blob.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/mapty/internal/models"
	"github.com/meltforce/mapty/internal/observability"
)

const (
	// DefaultStorageKey is the persistence key holding the workout blob.
	DefaultStorageKey = "workouts"
	// DefaultZoom is the map zoom used on load and when panning to a workout.
	DefaultZoom = 13
)

// Store is the authoritative in-memory workout collection. All methods are
// serialized by a single mutex; collaborators are called while it is held.
type Store struct {
	persist PersistenceStore
	surface MapSurface
	locator LocationProvider
	log     *slog.Logger

	key   string
	zoom  int
	now   func() time.Time
	newID func() string

	mu          sync.Mutex
	state       State
	locationErr error
	workouts    []*models.Workout
	markers     map[string]MarkerHandle
	selected    *models.Coordinates

	// generation is bumped by ResetAll so a location fetch started before
	// the reset cannot initialize the map afterwards.
	generation uint64
	settled    chan struct{}

	// persistFailures counts failed writes since the last successful one.
	persistFailures int
}

// Option configures a Store.
type Option func(*Store)

// WithStorageKey overrides the persistence key.
func WithStorageKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithZoom overrides the map zoom level.
func WithZoom(zoom int) Option {
	return func(s *Store) { s.zoom = zoom }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides workout id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New creates an empty Store in the Uninitialized state.
func New(persist PersistenceStore, surface MapSurface, locator LocationProvider, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		persist: persist,
		surface: surface,
		locator: locator,
		log:     log,
		key:     DefaultStorageKey,
		zoom:    DefaultZoom,
		now:     time.Now,
		newID:   uuid.NewString,
		markers: make(map[string]MarkerHandle),
		settled: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start requests the user's location in the background and moves the store to
// AwaitingLocation. When the fetch succeeds the map is initialized and any
// deferred markers are drawn; when it fails the store becomes Degraded.
// A fetch that never returns leaves the store in AwaitingLocation.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return fmt.Errorf("starting store: already %s", s.state)
	}
	s.state = StateAwaitingLocation
	gen := s.generation
	s.log.Info("waiting for location")

	go func() {
		coords, err := s.locator.CurrentPosition(ctx)
		s.locationResolved(ctx, gen, coords, err)
	}()
	return nil
}

// Settled returns a channel closed once the current location fetch has
// resolved (Ready or Degraded) or the store has been reset.
func (s *Store) Settled() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

func (s *Store) locationResolved(ctx context.Context, gen uint64, coords models.Coordinates, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.state != StateAwaitingLocation {
		return
	}
	defer s.settleLocked()

	if err != nil {
		s.degradeLocked(err)
		return
	}

	if err := s.surface.Initialize(ctx, coords, s.zoom); err != nil {
		s.degradeLocked(fmt.Errorf("initializing map: %w", err))
		return
	}
	s.surface.OnClick(s.SelectPoint)
	s.state = StateReady
	s.log.Info("map ready", "lat", coords.Lat, "lng", coords.Lng, "zoom", s.zoom)

	s.renderMarkersLocked(ctx)
}

func (s *Store) degradeLocked(err error) {
	s.state = StateDegraded
	s.locationErr = fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	s.log.Error("location unavailable, workout creation disabled", "error", err)
}

func (s *Store) settleLocked() {
	select {
	case <-s.settled:
	default:
		close(s.settled)
	}
}

// SelectPoint records a map click as the anchor for the next form submission.
func (s *Store) SelectPoint(coords models.Coordinates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = &coords
}

// Status is a snapshot of the store's lifecycle for the UI.
type Status struct {
	State         State               `json:"state"`
	SelectedPoint *models.Coordinates `json:"selected_point,omitempty"`
	LocationError string              `json:"location_error,omitempty"`
	Workouts      int                 `json:"workouts"`

	// PersistFailures is non-zero while the stored blob lags behind memory.
	PersistFailures int `json:"persist_failures"`
}

// Status reports the current state.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{State: s.state, Workouts: len(s.workouts), PersistFailures: s.persistFailures}
	if s.selected != nil {
		p := *s.selected
		st.SelectedPoint = &p
	}
	if s.locationErr != nil {
		st.LocationError = s.locationErr.Error()
	}
	return st
}

// Workouts returns copies of all workouts in display order.
func (s *Store) Workouts() []*models.Workout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.workouts)
}

// Workout returns a copy of the workout with the given id.
func (s *Store) Workout(id string) (*models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.workouts[i].Clone(), nil
}

// CreateWorkout validates the inputs, adds the workout to the collection, draws
// its marker and persists the collection. Extra is the cadence for running and
// the elevation for cycling.
func (s *Store) CreateWorkout(ctx context.Context, kind models.Kind, coords models.Coordinates, distanceKm, durationMin, extra float64) (*models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(ctx, kind, coords, distanceKm, durationMin, extra)
}

// Submit handles a form submission anchored at the last selected map point.
func (s *Store) Submit(ctx context.Context, sub Submission) (*models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	if s.selected == nil {
		return nil, ErrNoPointSelected
	}

	w, err := s.submitLocked(ctx, *s.selected, sub)
	if err != nil {
		return nil, err
	}
	s.selected = nil
	return w, nil
}

// SubmitAt handles a form submission for an explicit point, leaving the
// selected map point alone.
func (s *Store) SubmitAt(ctx context.Context, coords models.Coordinates, sub Submission) (*models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return s.submitLocked(ctx, coords, sub)
}

func (s *Store) submitLocked(ctx context.Context, coords models.Coordinates, sub Submission) (*models.Workout, error) {
	kind, distance, duration, extra, err := parseSubmission(sub)
	if err != nil {
		observability.RecordValidationFailure("create")
		return nil, err
	}
	return s.createLocked(ctx, kind, coords, distance, duration, extra)
}

func (s *Store) createLocked(ctx context.Context, kind models.Kind, coords models.Coordinates, distanceKm, durationMin, extra float64) (*models.Workout, error) {
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	if err := validateCreate(kind, distanceKm, durationMin, extra); err != nil {
		observability.RecordValidationFailure("create")
		return nil, err
	}

	w, err := models.NewWorkout(models.NewWorkoutParams{
		ID:          s.newID(),
		CreatedAt:   s.now(),
		Kind:        kind,
		Coords:      coords,
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
		Extra:       extra,
	})
	if err != nil {
		return nil, fmt.Errorf("creating workout: %w", err)
	}
	if s.indexLocked(w.ID) >= 0 {
		return nil, fmt.Errorf("creating workout: duplicate id %s", w.ID)
	}

	if err := s.addMarkerLocked(ctx, w); err != nil {
		return nil, err
	}
	s.workouts = append(s.workouts, w)
	s.persistLocked(ctx)

	observability.RecordWorkoutCreated(string(kind))
	s.log.Info("workout created", "id", w.ID, "kind", kind, "description", w.Description)
	return w.Clone(), nil
}

// EditResult reports the refreshed derived metric after an edit.
type EditResult struct {
	ID          string  `json:"id"`
	Field       string  `json:"field"`
	DerivedName string  `json:"derived_name"`
	Derived     float64 `json:"derived"`
}

// EditField sets one input field of a workout, recomputes its derived metric
// and persists the collection. Only the edited field is validated.
func (s *Store) EditField(ctx context.Context, id, field string, value float64) (EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return EditResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	w := s.workouts[i]

	f, err := resolveField(w, field)
	if err != nil {
		return EditResult{}, err
	}
	if err := f.validate(value); err != nil {
		observability.RecordValidationFailure("edit")
		return EditResult{}, err
	}
	f.set(w, value)

	derived, err := models.RecomputeDerived(w)
	if err != nil {
		return EditResult{}, fmt.Errorf("editing workout %s: %w", id, err)
	}
	s.persistLocked(ctx)

	name, _ := w.Derived()
	observability.RecordWorkoutEdited(f.name)
	s.log.Info("workout edited", "id", id, "field", f.name, name, derived)
	return EditResult{ID: id, Field: f.name, DerivedName: name, Derived: derived}, nil
}

// EditFieldText parses raw input the same way form submissions are parsed
// and applies it with EditField.
func (s *Store) EditFieldText(ctx context.Context, id, field, raw string) (EditResult, error) {
	value, err := parseNumber(field, raw)
	if err != nil {
		observability.RecordValidationFailure("edit")
		return EditResult{}, err
	}
	return s.EditField(ctx, id, field, value)
}

// DeleteWorkout removes a workout and its marker and persists the collection.
func (s *Store) DeleteWorkout(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.workouts = slices.Delete(s.workouts, i, i+1)
	s.removeMarkerLocked(ctx, id)
	s.persistLocked(ctx)

	observability.RecordWorkoutDeleted()
	s.log.Info("workout deleted", "id", id)
	return nil
}

// MoveTo pans the map to a workout's coordinates.
func (s *Store) MoveTo(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.readyLocked(); err != nil {
		return err
	}
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.surface.PanTo(ctx, s.workouts[i].Coords, s.zoom, true); err != nil {
		return fmt.Errorf("panning to workout %s: %w", id, err)
	}
	return nil
}

// Restore replaces the collection with the persisted blob and returns it for
// list rendering. A missing blob is a no-op. A malformed blob empties the
// collection and returns ErrDeserialization. Markers are drawn now if the map
// is ready, otherwise when it becomes ready.
func (s *Store) Restore(ctx context.Context) ([]*models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok, err := s.persist.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("reading persisted workouts: %w", err)
	}
	if !ok {
		return []*models.Workout{}, nil
	}

	workouts, err := models.DecodeWorkouts(blob)
	s.clearMarkersLocked(ctx)
	if err != nil {
		s.workouts = nil
		observability.SetWorkoutsStored(0)
		observability.RecordRestoreFailure()
		s.log.Error("discarding persisted workouts", "error", err)
		return []*models.Workout{}, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}

	s.workouts = workouts
	observability.SetWorkoutsStored(len(workouts))
	if s.state == StateReady {
		s.renderMarkersLocked(ctx)
	}
	s.log.Info("workouts restored", "count", len(workouts), "state", s.state)
	return cloneAll(workouts), nil
}

// ResetAll removes every marker and workout, deletes the persisted blob and
// returns the store to Uninitialized. Call Start again to reload the map.
func (s *Store) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("removing persisted workouts: %w", err)
	}

	s.clearMarkersLocked(ctx)
	s.workouts = nil
	s.selected = nil
	s.persistFailures = 0
	observability.SetWorkoutsStored(0)

	s.settleLocked()
	s.generation++
	s.settled = make(chan struct{})
	s.state = StateUninitialized
	s.locationErr = nil
	s.log.Info("store reset")
	return nil
}

func (s *Store) readyLocked() error {
	switch s.state {
	case StateReady:
		return nil
	case StateDegraded:
		return s.locationErr
	default:
		return fmt.Errorf("%w: %s", ErrMapUnready, s.state)
	}
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.workouts, func(w *models.Workout) bool { return w.ID == id })
}

func (s *Store) addMarkerLocked(ctx context.Context, w *models.Workout) error {
	handle, err := s.surface.AddMarker(ctx, w.Coords, w.Description, popupOptions(w.Kind()))
	if err != nil {
		return fmt.Errorf("adding marker for workout %s: %w", w.ID, err)
	}
	s.markers[w.ID] = handle
	return nil
}

func (s *Store) removeMarkerLocked(ctx context.Context, id string) {
	handle, ok := s.markers[id]
	if !ok {
		return
	}
	delete(s.markers, id)
	if err := s.surface.RemoveMarker(ctx, handle); err != nil {
		s.log.Warn("removing marker", "id", id, "error", err)
	}
}

func (s *Store) clearMarkersLocked(ctx context.Context) {
	for id := range s.markers {
		s.removeMarkerLocked(ctx, id)
	}
}

// renderMarkersLocked draws a marker for every workout that does not have one.
func (s *Store) renderMarkersLocked(ctx context.Context) {
	for _, w := range s.workouts {
		if _, ok := s.markers[w.ID]; ok {
			continue
		}
		if err := s.addMarkerLocked(ctx, w); err != nil {
			s.log.Warn("rendering restored marker", "id", w.ID, "error", err)
		}
	}
}

// persistLocked writes the whole collection. A failed write is logged and
// counted; the in-memory mutation stands and the next write carries it.
// The write is not tied to the caller's cancellation, since the mutation it
// records has already happened.
func (s *Store) persistLocked(ctx context.Context) {
	observability.SetWorkoutsStored(len(s.workouts))

	blob, err := models.EncodeWorkouts(s.workouts)
	if err == nil {
		err = s.persist.Set(context.WithoutCancel(ctx), s.key, blob)
	}
	if err != nil {
		s.persistFailures++
		observability.RecordPersistFailure()
		s.log.Error("persisting workouts", "count", len(s.workouts), "failures", s.persistFailures, "error", err)
		return
	}
	s.persistFailures = 0
}

func popupOptions(kind models.Kind) PopupOptions {
	return PopupOptions{
		MaxWidth:     250,
		MinWidth:     100,
		AutoClose:    false,
		CloseOnClick: false,
		ClassName:    string(kind) + "-popup",
	}
}

func cloneAll(workouts []*models.Workout) []*models.Workout {
	out := make([]*models.Workout, len(workouts))
	for i, w := range workouts {
		out[i] = w.Clone()
	}
	return out
}
