package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// workoutJSON is the flat persisted shape of a workout. Kind-specific fields
// are present only for their own kind.
type workoutJSON struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	Coordinates  []float64 `json:"coordinates"`
	DistanceKm   float64   `json:"distanceKm"`
	DurationMin  float64   `json:"durationMin"`
	Kind         Kind      `json:"kind"`
	CadenceSPM   *float64  `json:"cadenceSpm,omitempty"`
	PaceMinPerKm *float64  `json:"paceMinPerKm,omitempty"`
	ElevationM   *float64  `json:"elevationM,omitempty"`
	SpeedKmPerHr *float64  `json:"speedKmPerHr,omitempty"`
	Description  string    `json:"description"`
}

// MarshalJSON implements json.Marshaler using the flat persisted shape.
func (w *Workout) MarshalJSON() ([]byte, error) {
	out := workoutJSON{
		ID:          w.ID,
		CreatedAt:   w.CreatedAt,
		Coordinates: []float64{w.Coords.Lat, w.Coords.Lng},
		DistanceKm:  w.DistanceKm,
		DurationMin: w.DurationMin,
		Description: w.Description,
	}

	switch a := w.Activity.(type) {
	case *Running:
		out.Kind = KindRunning
		out.CadenceSPM = &a.CadenceSPM
		out.PaceMinPerKm = &a.PaceMinPerKm
	case *Cycling:
		out.Kind = KindCycling
		out.ElevationM = &a.ElevationM
		out.SpeedKmPerHr = &a.SpeedKmPerHr
	default:
		return nil, fmt.Errorf("workout %s: %w", w.ID, ErrInvalidKind)
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Records missing their id, kind,
// coordinates or kind-specific input are rejected, as are records whose
// distance, duration or cadence is not positive.
func (w *Workout) UnmarshalJSON(data []byte) error {
	var in workoutJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.ID == "" {
		return fmt.Errorf("workout: missing id")
	}
	if len(in.Coordinates) != 2 {
		return fmt.Errorf("workout %s: coordinates must be [lat, lng], got %d values", in.ID, len(in.Coordinates))
	}

	kind, err := ParseKind(string(in.Kind))
	if err != nil {
		return fmt.Errorf("workout %s: %w", in.ID, err)
	}

	if !positive(in.DistanceKm) {
		return fmt.Errorf("workout %s: distanceKm must be positive, got %v", in.ID, in.DistanceKm)
	}
	if !positive(in.DurationMin) {
		return fmt.Errorf("workout %s: durationMin must be positive, got %v", in.ID, in.DurationMin)
	}

	*w = Workout{
		ID:          in.ID,
		CreatedAt:   in.CreatedAt,
		Coords:      Coordinates{Lat: in.Coordinates[0], Lng: in.Coordinates[1]},
		DistanceKm:  in.DistanceKm,
		DurationMin: in.DurationMin,
		Description: in.Description,
	}

	recompute := false
	switch kind {
	case KindRunning:
		if in.CadenceSPM == nil {
			return fmt.Errorf("workout %s: running record without cadenceSpm", in.ID)
		}
		if !positive(*in.CadenceSPM) {
			return fmt.Errorf("workout %s: cadenceSpm must be positive, got %v", in.ID, *in.CadenceSPM)
		}
		r := &Running{CadenceSPM: *in.CadenceSPM}
		if in.PaceMinPerKm != nil {
			r.PaceMinPerKm = *in.PaceMinPerKm
		} else {
			recompute = true
		}
		w.Activity = r
	case KindCycling:
		if in.ElevationM == nil {
			return fmt.Errorf("workout %s: cycling record without elevationM", in.ID)
		}
		if math.IsNaN(*in.ElevationM) || math.IsInf(*in.ElevationM, 0) {
			return fmt.Errorf("workout %s: elevationM must be finite", in.ID)
		}
		c := &Cycling{ElevationM: *in.ElevationM}
		if in.SpeedKmPerHr != nil {
			c.SpeedKmPerHr = *in.SpeedKmPerHr
		} else {
			recompute = true
		}
		w.Activity = c
	}

	if recompute {
		if _, err := RecomputeDerived(w); err != nil {
			return err
		}
	}
	if w.Description == "" {
		w.Description = FormatDescription(kind, w.CreatedAt)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// EncodeWorkouts serializes the collection as a JSON array. A nil or empty
// collection encodes as "[]".
func EncodeWorkouts(workouts []*Workout) ([]byte, error) {
	if workouts == nil {
		workouts = []*Workout{}
	}
	data, err := json.Marshal(workouts)
	if err != nil {
		return nil, fmt.Errorf("encoding workouts: %w", err)
	}
	return data, nil
}

// DecodeWorkouts parses a blob produced by EncodeWorkouts. An empty blob or
// JSON null yields an empty collection. Repeated ids are rejected.
func DecodeWorkouts(data []byte) ([]*Workout, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []*Workout{}, nil
	}

	var workouts []*Workout
	if err := json.Unmarshal(data, &workouts); err != nil {
		return nil, fmt.Errorf("decoding workouts: %w", err)
	}
	seen := make(map[string]struct{}, len(workouts))
	for i, w := range workouts {
		if w == nil {
			return nil, fmt.Errorf("decoding workouts: entry %d is null", i)
		}
		if _, ok := seen[w.ID]; ok {
			return nil, fmt.Errorf("decoding workouts: duplicate id %s", w.ID)
		}
		seen[w.ID] = struct{}{}
	}
	return workouts, nil
}
