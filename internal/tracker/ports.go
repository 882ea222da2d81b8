package tracker

import (
	"context"

	"github.com/meltforce/mapty/internal/models"
)

// PersistenceStore is a key/value blob store. Get reports ok=false when the
// key has never been set or was removed.
type PersistenceStore interface {
	Get(ctx context.Context, key string) (blob []byte, ok bool, err error)
	Set(ctx context.Context, key string, blob []byte) error
	Remove(ctx context.Context, key string) error
}

// MarkerHandle identifies a marker owned by the map surface.
type MarkerHandle string

// PopupOptions controls how a marker's popup is shown.
type PopupOptions struct {
	MaxWidth     int    `json:"max_width"`
	MinWidth     int    `json:"min_width"`
	AutoClose    bool   `json:"auto_close"`
	CloseOnClick bool   `json:"close_on_click"`
	ClassName    string `json:"class_name"`
}

// MapSurface draws the map the workouts are anchored to. Implementations must
// not call back into the Store from inside these methods.
type MapSurface interface {
	Initialize(ctx context.Context, center models.Coordinates, zoom int) error
	OnClick(handler func(models.Coordinates))
	PanTo(ctx context.Context, coords models.Coordinates, zoom int, animate bool) error
	AddMarker(ctx context.Context, coords models.Coordinates, popup string, opts PopupOptions) (MarkerHandle, error)
	RemoveMarker(ctx context.Context, handle MarkerHandle) error
}

// LocationProvider performs a one-shot fetch of the user's position. It may
// block until ctx is done.
type LocationProvider interface {
	CurrentPosition(ctx context.Context) (models.Coordinates, error)
}

// Submission is a form submission exactly as entered. Numeric fields are raw
// text; parsing them is part of validation.
type Submission struct {
	Kind      string `json:"kind"`
	Distance  string `json:"distance"`
	Duration  string `json:"duration"`
	Cadence   string `json:"cadence,omitempty"`
	Elevation string `json:"elevation,omitempty"`
}
