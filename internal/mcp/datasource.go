package mcp

import (
	"context"

	"github.com/meltforce/mapty/internal/models"
	"github.com/meltforce/mapty/internal/tracker"
)

// DataSource abstracts the workout store for MCP tools. Local (in-process)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListWorkouts(ctx context.Context) ([]*models.Workout, error)
	GetWorkout(ctx context.Context, id string) (*models.Workout, error)
	LogWorkout(ctx context.Context, coords models.Coordinates, sub tracker.Submission) (*models.Workout, error)
	EditWorkout(ctx context.Context, id, field, value string) (tracker.EditResult, error)
	DeleteWorkout(ctx context.Context, id string) error
}

// Local serves MCP tools straight from the store the HTTP server uses.
type Local struct {
	Store *tracker.Store
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = Local{}

func (l Local) ListWorkouts(context.Context) ([]*models.Workout, error) {
	return l.Store.Workouts(), nil
}

func (l Local) GetWorkout(_ context.Context, id string) (*models.Workout, error) {
	return l.Store.Workout(id)
}

func (l Local) LogWorkout(ctx context.Context, coords models.Coordinates, sub tracker.Submission) (*models.Workout, error) {
	return l.Store.SubmitAt(ctx, coords, sub)
}

func (l Local) EditWorkout(ctx context.Context, id, field, value string) (tracker.EditResult, error) {
	return l.Store.EditFieldText(ctx, id, field, value)
}

func (l Local) DeleteWorkout(ctx context.Context, id string) error {
	return l.Store.DeleteWorkout(ctx, id)
}
