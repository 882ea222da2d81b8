package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidKind is returned for a workout kind outside the known variant set.
var ErrInvalidKind = errors.New("invalid workout kind")

// Kind identifies the activity variant of a workout. It is fixed per workout.
type Kind string

const (
	KindRunning Kind = "running"
	KindCycling Kind = "cycling"
)

// ParseKind converts a form or wire value into a Kind. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindRunning:
		return KindRunning, nil
	case KindCycling:
		return KindCycling, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
}

// Label returns the capitalized kind name used in descriptions ("Running").
func (k Kind) Label() string {
	if k == "" {
		return ""
	}
	s := string(k)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is a finite point on the globe.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Activity is the kind-specific part of a workout. The set is closed:
// only *Running and *Cycling implement it.
type Activity interface {
	Kind() Kind
	activity()
}

// Running holds running-only fields. PaceMinPerKm is derived.
type Running struct {
	CadenceSPM   float64
	PaceMinPerKm float64
}

func (*Running) Kind() Kind { return KindRunning }
func (*Running) activity()  {}

// Cycling holds cycling-only fields. SpeedKmPerHr is derived.
// ElevationM may be zero or negative (a descent).
type Cycling struct {
	ElevationM   float64
	SpeedKmPerHr float64
}

func (*Cycling) Kind() Kind { return KindCycling }
func (*Cycling) activity()  {}

// Workout is a single logged activity. ID, CreatedAt, Coords and the activity
// variant never change after creation; distance, duration and the
// kind-specific input can be edited.
type Workout struct {
	ID          string
	CreatedAt   time.Time
	Coords      Coordinates
	DistanceKm  float64
	DurationMin float64
	Activity    Activity
	Description string
}

// Kind returns the workout's variant, or "" when no activity is attached.
func (w *Workout) Kind() Kind {
	if w.Activity == nil {
		return ""
	}
	return w.Activity.Kind()
}

// Derived returns the name and cached value of the workout's derived metric.
func (w *Workout) Derived() (string, float64) {
	switch a := w.Activity.(type) {
	case *Running:
		return "pace", a.PaceMinPerKm
	case *Cycling:
		return "speed", a.SpeedKmPerHr
	default:
		return "", 0
	}
}

// Clone returns a deep copy so callers can read a workout without holding
// the owner's lock.
func (w *Workout) Clone() *Workout {
	c := *w
	switch a := w.Activity.(type) {
	case *Running:
		r := *a
		c.Activity = &r
	case *Cycling:
		cy := *a
		c.Activity = &cy
	}
	return &c
}

// NewWorkoutParams are the inputs for NewWorkout. Extra is the cadence in
// steps/min for running and the elevation gain in metres for cycling.
type NewWorkoutParams struct {
	ID          string
	CreatedAt   time.Time
	Kind        Kind
	Coords      Coordinates
	DistanceKm  float64
	DurationMin float64
	Extra       float64
}

// NewWorkout builds a workout with its derived metric and description filled in.
// Inputs are not validated here; only an unknown kind is rejected.
func NewWorkout(p NewWorkoutParams) (*Workout, error) {
	w := &Workout{
		ID:          p.ID,
		CreatedAt:   p.CreatedAt,
		Coords:      p.Coords,
		DistanceKm:  p.DistanceKm,
		DurationMin: p.DurationMin,
	}

	switch p.Kind {
	case KindRunning:
		w.Activity = &Running{CadenceSPM: p.Extra}
	case KindCycling:
		w.Activity = &Cycling{ElevationM: p.Extra}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, p.Kind)
	}

	if _, err := RecomputeDerived(w); err != nil {
		return nil, err
	}
	w.Description = FormatDescription(p.Kind, p.CreatedAt)
	return w, nil
}

// RecomputeDerived refreshes the cached pace or speed from the current
// distance and duration and returns the new value.
func RecomputeDerived(w *Workout) (float64, error) {
	switch a := w.Activity.(type) {
	case *Running:
		a.PaceMinPerKm = w.DurationMin / w.DistanceKm // min/km
		return a.PaceMinPerKm, nil
	case *Cycling:
		a.SpeedKmPerHr = w.DistanceKm / (w.DurationMin / 60) // km/h
		return a.SpeedKmPerHr, nil
	default:
		return 0, ErrInvalidKind
	}
}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// FormatDescription returns "<Kind> on <Month> <Day>", e.g. "Running on April 14".
func FormatDescription(kind Kind, createdAt time.Time) string {
	return fmt.Sprintf("%s on %s %d", kind.Label(), monthNames[createdAt.Month()-1], createdAt.Day())
}
