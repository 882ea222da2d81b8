package models

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

const tolerance = 1e-9

var created = time.Date(2026, time.April, 14, 9, 30, 0, 0, time.UTC)

// TestNewWorkoutRunning verifies pace = duration/distance and the description format.
func TestNewWorkoutRunning(t *testing.T) {
	w, err := NewWorkout(NewWorkoutParams{
		ID: "r1", CreatedAt: created, Kind: KindRunning,
		Coords: Coordinates{Lat: 10, Lng: 20}, DistanceKm: 5, DurationMin: 30, Extra: 150,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, ok := w.Activity.(*Running)
	if !ok {
		t.Fatalf("activity = %T, want *Running", w.Activity)
	}
	if math.Abs(r.PaceMinPerKm-6.0) > tolerance {
		t.Errorf("pace = %v, want 6.0", r.PaceMinPerKm)
	}
	if r.CadenceSPM != 150 {
		t.Errorf("cadence = %v, want 150", r.CadenceSPM)
	}
	if w.Description != "Running on April 14" {
		t.Errorf("description = %q, want %q", w.Description, "Running on April 14")
	}
	if w.Kind() != KindRunning {
		t.Errorf("kind = %q, want running", w.Kind())
	}
}

// TestNewWorkoutCycling verifies speed = distance/(duration/60).
func TestNewWorkoutCycling(t *testing.T) {
	w, err := NewWorkout(NewWorkoutParams{
		ID: "c1", CreatedAt: created, Kind: KindCycling,
		Coords: Coordinates{Lat: 10, Lng: 20}, DistanceKm: 20, DurationMin: 60, Extra: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name, speed := w.Derived()
	if name != "speed" {
		t.Errorf("derived name = %q, want speed", name)
	}
	if math.Abs(speed-20.0) > tolerance {
		t.Errorf("speed = %v, want 20.0", speed)
	}
	if w.Description != "Cycling on April 14" {
		t.Errorf("description = %q", w.Description)
	}
}

// TestNewWorkoutUnknownKind verifies that a kind outside the variant set is rejected.
func TestNewWorkoutUnknownKind(t *testing.T) {
	_, err := NewWorkout(NewWorkoutParams{ID: "x", Kind: "swimming", DistanceKm: 1, DurationMin: 1})
	if !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("err = %v, want ErrInvalidKind", err)
	}
}

// TestRecomputeDerivedIdempotent verifies that recomputing twice yields the same value
// and that a changed input is picked up.
func TestRecomputeDerivedIdempotent(t *testing.T) {
	w, _ := NewWorkout(NewWorkoutParams{ID: "r", CreatedAt: created, Kind: KindRunning, DistanceKm: 4, DurationMin: 22, Extra: 170})

	first, err := RecomputeDerived(w)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := RecomputeDerived(w)
	if first != second {
		t.Errorf("recompute not idempotent: %v then %v", first, second)
	}

	w.DurationMin = 40
	got, _ := RecomputeDerived(w)
	if math.Abs(got-10) > tolerance {
		t.Errorf("pace after edit = %v, want 10", got)
	}
}

// TestRecomputeDerivedMissingActivity verifies the invalid-kind signal for a record
// without a variant payload.
func TestRecomputeDerivedMissingActivity(t *testing.T) {
	_, err := RecomputeDerived(&Workout{ID: "bad", DistanceKm: 1, DurationMin: 1})
	if !errors.Is(err, ErrInvalidKind) {
		t.Errorf("err = %v, want ErrInvalidKind", err)
	}
}

// TestFormatDescriptionMonths verifies the month table is zero-indexed correctly at both ends.
func TestFormatDescriptionMonths(t *testing.T) {
	tests := []struct {
		kind Kind
		at   time.Time
		want string
	}{
		{KindRunning, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), "Running on January 1"},
		{KindCycling, time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC), "Cycling on December 31"},
		{KindCycling, time.Date(2025, time.July, 4, 12, 0, 0, 0, time.UTC), "Cycling on July 4"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDescription(tt.kind, tt.at); got != tt.want {
				t.Errorf("FormatDescription = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestParseKind verifies case-insensitive parsing and rejection of unknown kinds.
func TestParseKind(t *testing.T) {
	if k, err := ParseKind(" Running "); err != nil || k != KindRunning {
		t.Errorf("ParseKind(Running) = %q, %v", k, err)
	}
	if k, err := ParseKind("cycling"); err != nil || k != KindCycling {
		t.Errorf("ParseKind(cycling) = %q, %v", k, err)
	}
	if _, err := ParseKind("rowing"); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("ParseKind(rowing) err = %v, want ErrInvalidKind", err)
	}
}

// TestCloneIsDeep verifies that mutating a clone leaves the original untouched.
func TestCloneIsDeep(t *testing.T) {
	w, _ := NewWorkout(NewWorkoutParams{ID: "c", CreatedAt: created, Kind: KindCycling, DistanceKm: 10, DurationMin: 30, Extra: 5})
	c := w.Clone()
	c.DistanceKm = 99
	c.Activity.(*Cycling).ElevationM = -40

	if w.DistanceKm != 10 {
		t.Errorf("original distance changed to %v", w.DistanceKm)
	}
	if got := w.Activity.(*Cycling).ElevationM; got != 5 {
		t.Errorf("original elevation changed to %v", got)
	}
}

// TestRoundTrip verifies that encode then decode yields records equal in every field.
func TestRoundTrip(t *testing.T) {
	run, _ := NewWorkout(NewWorkoutParams{ID: "r1", CreatedAt: created, Kind: KindRunning, Coords: Coordinates{Lat: 51.5, Lng: -0.12}, DistanceKm: 5.2, DurationMin: 24, Extra: 178})
	ride, _ := NewWorkout(NewWorkoutParams{ID: "c1", CreatedAt: created.Add(time.Hour), Kind: KindCycling, Coords: Coordinates{Lat: 10, Lng: 20}, DistanceKm: 27, DurationMin: 95, Extra: -120})

	blob, err := EncodeWorkouts([]*Workout{run, ride})
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeWorkouts(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d workouts, want 2", len(got))
	}

	for i, want := range []*Workout{run, ride} {
		g := got[i]
		if g.ID != want.ID || !g.CreatedAt.Equal(want.CreatedAt) || g.Coords != want.Coords ||
			g.DistanceKm != want.DistanceKm || g.DurationMin != want.DurationMin || g.Description != want.Description {
			t.Errorf("workout %d common fields = %+v, want %+v", i, g, want)
		}
		gn, gv := g.Derived()
		wn, wv := want.Derived()
		if gn != wn || gv != wv {
			t.Errorf("workout %d derived = %s %v, want %s %v", i, gn, gv, wn, wv)
		}
	}
	if got[0].Activity.(*Running).CadenceSPM != 178 {
		t.Errorf("cadence = %v, want 178", got[0].Activity.(*Running).CadenceSPM)
	}
	if got[1].Activity.(*Cycling).ElevationM != -120 {
		t.Errorf("elevation = %v, want -120", got[1].Activity.(*Cycling).ElevationM)
	}
}

// TestEncodeFlatShape verifies the persisted field names.
func TestEncodeFlatShape(t *testing.T) {
	run, _ := NewWorkout(NewWorkoutParams{ID: "r1", CreatedAt: created, Kind: KindRunning, Coords: Coordinates{Lat: 10, Lng: 20}, DistanceKm: 5, DurationMin: 30, Extra: 150})
	blob, err := EncodeWorkouts([]*Workout{run})
	if err != nil {
		t.Fatal(err)
	}
	s := string(blob)
	for _, field := range []string{`"id":"r1"`, `"coordinates":[10,20]`, `"kind":"running"`, `"cadenceSpm":150`, `"paceMinPerKm":6`, `"description":"Running on April 14"`} {
		if !strings.Contains(s, field) {
			t.Errorf("encoded blob %s missing %s", s, field)
		}
	}
	if strings.Contains(s, "elevationM") || strings.Contains(s, "speedKmPerHr") {
		t.Errorf("running record carries cycling fields: %s", s)
	}
}

// TestEncodeEmpty verifies an empty collection encodes as an empty array.
func TestEncodeEmpty(t *testing.T) {
	blob, err := EncodeWorkouts(nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(blob) != "[]" {
		t.Errorf("EncodeWorkouts(nil) = %s, want []", blob)
	}
}

// TestDecodeRecomputesMissingDerived verifies a record without a cached metric
// gets it recomputed from its kind tag.
func TestDecodeRecomputesMissingDerived(t *testing.T) {
	blob := `[{"id":"a","createdAt":"2026-04-14T09:30:00Z","coordinates":[1,2],"distanceKm":20,"durationMin":60,"kind":"cycling","elevationM":0,"description":"Cycling on April 14"}]`
	got, err := DecodeWorkouts([]byte(blob))
	if err != nil {
		t.Fatal(err)
	}
	if _, v := got[0].Derived(); v != 20 {
		t.Errorf("speed = %v, want 20", v)
	}
}

// TestDecodeRejectsIncompatibleShapes verifies malformed blobs fail instead of
// producing half-populated records.
func TestDecodeRejectsIncompatibleShapes(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"not json", `{{{`},
		{"object not array", `{"id":"a"}`},
		{"unknown kind", `[{"id":"a","coordinates":[1,2],"distanceKm":1,"durationMin":1,"kind":"rowing"}]`},
		{"missing id", `[{"coordinates":[1,2],"distanceKm":1,"durationMin":1,"kind":"running","cadenceSpm":1}]`},
		{"short coordinates", `[{"id":"a","coordinates":[1],"distanceKm":1,"durationMin":1,"kind":"running","cadenceSpm":1}]`},
		{"running without cadence", `[{"id":"a","coordinates":[1,2],"distanceKm":1,"durationMin":1,"kind":"running"}]`},
		{"cycling without elevation", `[{"id":"a","coordinates":[1,2],"distanceKm":1,"durationMin":1,"kind":"cycling"}]`},
		{"null entry", `[null]`},
		{"missing distance", `[{"id":"a","coordinates":[1,2],"durationMin":1,"kind":"running","cadenceSpm":150}]`},
		{"zero distance", `[{"id":"a","coordinates":[1,2],"distanceKm":0,"durationMin":1,"kind":"running","cadenceSpm":150}]`},
		{"negative distance", `[{"id":"a","coordinates":[1,2],"distanceKm":-5,"durationMin":1,"kind":"cycling","elevationM":10}]`},
		{"missing duration", `[{"id":"a","coordinates":[1,2],"distanceKm":5,"kind":"cycling","elevationM":10}]`},
		{"negative duration", `[{"id":"a","coordinates":[1,2],"distanceKm":5,"durationMin":-1,"kind":"running","cadenceSpm":150}]`},
		{"zero cadence", `[{"id":"a","coordinates":[1,2],"distanceKm":5,"durationMin":25,"kind":"running","cadenceSpm":0}]`},
		{"negative cadence", `[{"id":"a","coordinates":[1,2],"distanceKm":5,"durationMin":25,"kind":"running","cadenceSpm":-170}]`},
		{"duplicate id", `[{"id":"a","coordinates":[1,2],"distanceKm":1,"durationMin":1,"kind":"running","cadenceSpm":1},{"id":"a","coordinates":[3,4],"distanceKm":2,"durationMin":2,"kind":"cycling","elevationM":5}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeWorkouts([]byte(tt.blob)); err == nil {
				t.Errorf("DecodeWorkouts(%s) = nil error, want error", tt.blob)
			}
		})
	}
}

// TestDecodeEmpty verifies empty and null blobs restore as an empty collection.
func TestDecodeEmpty(t *testing.T) {
	for _, blob := range []string{"", "null", " [] "} {
		got, err := DecodeWorkouts([]byte(blob))
		if err != nil {
			t.Errorf("DecodeWorkouts(%q) err = %v", blob, err)
		}
		if len(got) != 0 {
			t.Errorf("DecodeWorkouts(%q) len = %d, want 0", blob, len(got))
		}
	}
}
