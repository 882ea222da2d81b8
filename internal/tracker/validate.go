package tracker

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/meltforce/mapty/internal/models"
)

// validateCreate checks creation inputs. Elevation only has to be finite:
// a ride can lose height overall.
func validateCreate(kind models.Kind, distanceKm, durationMin, extra float64) error {
	if err := positive("distance", distanceKm); err != nil {
		return err
	}
	if err := positive("duration", durationMin); err != nil {
		return err
	}

	switch kind {
	case models.KindRunning:
		return positive("cadence", extra)
	case models.KindCycling:
		return finite("elevation", extra)
	default:
		return &ValidationError{Field: "kind", Value: string(kind)}
	}
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: field, Value: formatValue(v)}
	}
	return nil
}

func positive(field string, v float64) error {
	if err := finite(field, v); err != nil {
		return err
	}
	if v <= 0 {
		return &ValidationError{Field: field, Value: formatValue(v)}
	}
	return nil
}

// parseNumber converts raw form text to a number. Blank input counts as zero,
// which the positivity checks then reject where it matters.
func parseNumber(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Value: raw}
	}
	return v, nil
}

// parseSubmission reads the kind and numbers out of raw form text. The
// extra input is the cadence for running and the elevation for cycling.
func parseSubmission(sub Submission) (kind models.Kind, distance, duration, extra float64, err error) {
	kind, err = models.ParseKind(sub.Kind)
	if err != nil {
		return "", 0, 0, 0, &ValidationError{Field: "kind", Value: sub.Kind}
	}
	if distance, err = parseNumber("distance", sub.Distance); err != nil {
		return "", 0, 0, 0, err
	}
	if duration, err = parseNumber("duration", sub.Duration); err != nil {
		return "", 0, 0, 0, err
	}
	switch kind {
	case models.KindRunning:
		extra, err = parseNumber("cadence", sub.Cadence)
	case models.KindCycling:
		extra, err = parseNumber("elevation", sub.Elevation)
	}
	if err != nil {
		return "", 0, 0, 0, err
	}
	return kind, distance, duration, extra, nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// editableField is one settable input of a workout.
type editableField struct {
	name     string
	validate func(float64) error
	set      func(*models.Workout, float64)
}

// resolveField maps an edit's field name onto the workout's variant.
func resolveField(w *models.Workout, field string) (editableField, error) {
	name := strings.ToLower(strings.TrimSpace(field))

	switch name {
	case "pace", "speed":
		return editableField{}, fmt.Errorf("%w: %s", ErrDerivedReadOnly, name)
	case "distance":
		return editableField{
			name:     name,
			validate: func(v float64) error { return positive(name, v) },
			set:      func(w *models.Workout, v float64) { w.DistanceKm = v },
		}, nil
	case "duration":
		return editableField{
			name:     name,
			validate: func(v float64) error { return positive(name, v) },
			set:      func(w *models.Workout, v float64) { w.DurationMin = v },
		}, nil
	}

	switch a := w.Activity.(type) {
	case *models.Running:
		if name == "cadence" {
			return editableField{
				name:     name,
				validate: func(v float64) error { return positive(name, v) },
				set:      func(_ *models.Workout, v float64) { a.CadenceSPM = v },
			}, nil
		}
	case *models.Cycling:
		if name == "elevation" {
			return editableField{
				name:     name,
				validate: func(v float64) error { return positive(name, v) },
				set:      func(_ *models.Workout, v float64) { a.ElevationM = v },
			}, nil
		}
	}
	return editableField{}, fmt.Errorf("%w: %q on %s workout", ErrUnknownField, field, w.Kind())
}
