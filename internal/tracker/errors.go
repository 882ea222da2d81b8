package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks non-finite, non-positive or unparseable numeric input.
	ErrValidation = errors.New("inputs have to be positive numbers")
	// ErrNotFound is returned when no workout has the given id.
	ErrNotFound = errors.New("workout not found")
	// ErrDerivedReadOnly is returned when editing pace or speed directly.
	ErrDerivedReadOnly = errors.New("derived field is read-only")
	// ErrUnknownField is returned for an edit naming a field the workout does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrDeserialization is returned when the persisted blob cannot be restored.
	ErrDeserialization = errors.New("persisted workouts are malformed")
	// ErrLocationUnavailable is returned once the location fetch has failed.
	ErrLocationUnavailable = errors.New("could not get your location")
	// ErrMapUnready is returned while the map is still waiting for a location.
	ErrMapUnready = errors.New("map is not ready")
	// ErrNoPointSelected is returned for a form submission before any map click.
	ErrNoPointSelected = errors.New("no map point selected")
)

// ValidationError names the offending field. It unwraps to ErrValidation.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s=%q", ErrValidation, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
