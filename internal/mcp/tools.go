package mcp

import (
	"context"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/mapty/internal/models"
	"github.com/meltforce/mapty/internal/tracker"
)

// --- Tool definitions ---

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List logged workouts, oldest first. Each has id, coordinates, distance (km), duration (min), kind, description and its kind-specific fields."),
	mcp.WithString("kind", mcp.Description("Only return workouts of this kind"), mcp.Enum("running", "cycling")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get a single workout by id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id")),
)

var toolLogWorkout = mcp.NewTool("log_workout",
	mcp.WithDescription("Log a new workout at the given coordinates. Running needs cadence (steps/min); cycling needs elevation gain (m). Distance and duration must be positive."),
	mcp.WithString("kind", mcp.Required(), mcp.Enum("running", "cycling")),
	mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude in degrees")),
	mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude in degrees")),
	mcp.WithNumber("distance", mcp.Required(), mcp.Description("Distance in km")),
	mcp.WithNumber("duration", mcp.Required(), mcp.Description("Duration in minutes")),
	mcp.WithNumber("cadence", mcp.Description("Running cadence in steps/min")),
	mcp.WithNumber("elevation", mcp.Description("Cycling elevation gain in m, may be negative")),
)

var toolEditWorkout = mcp.NewTool("edit_workout",
	mcp.WithDescription("Change one input field of a workout. The derived pace or speed is recomputed."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id")),
	mcp.WithString("field", mcp.Required(), mcp.Enum("distance", "duration", "cadence", "elevation")),
	mcp.WithNumber("value", mcp.Required(), mcp.Description("New value")),
)

var toolDeleteWorkout = mcp.NewTool("delete_workout",
	mcp.WithDescription("Delete a workout and its map marker."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout id")),
)

// --- Tool handlers ---

func (h *handlers) listWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workouts, err := h.ds.ListWorkouts(ctx)
	if err != nil {
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	if k := req.GetString("kind", ""); k != "" {
		kind, err := models.ParseKind(k)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filtered := make([]*models.Workout, 0, len(workouts))
		for _, w := range workouts {
			if w.Kind() == kind {
				filtered = append(filtered, w)
			}
		}
		workouts = filtered
	}

	result, err := mcp.NewToolResultJSON(workouts)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	w, err := h.ds.GetWorkout(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(w)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) logWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError("kind parameter is required"), nil
	}
	var coords models.Coordinates
	if coords.Lat, err = req.RequireFloat("lat"); err != nil {
		return mcp.NewToolResultError("lat parameter is required"), nil
	}
	if coords.Lng, err = req.RequireFloat("lng"); err != nil {
		return mcp.NewToolResultError("lng parameter is required"), nil
	}
	if !coords.Valid() {
		return mcp.NewToolResultError("coordinates out of range"), nil
	}

	sub := tracker.Submission{
		Kind:      kind,
		Distance:  numberArg(req, "distance"),
		Duration:  numberArg(req, "duration"),
		Cadence:   numberArg(req, "cadence"),
		Elevation: numberArg(req, "elevation"),
	}

	w, err := h.ds.LogWorkout(ctx, coords, sub)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	h.log.Info("workout logged via mcp", "id", w.ID, "kind", w.Kind())

	result, err := mcp.NewToolResultJSON(w)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) editWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	field, err := req.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError("field parameter is required"), nil
	}
	value := numberArg(req, "value")
	if value == "" {
		return mcp.NewToolResultError("value parameter is required"), nil
	}

	res, err := h.ds.EditWorkout(ctx, id, field, value)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(res)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) deleteWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	if err := h.ds.DeleteWorkout(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted " + id), nil
}

// numberArg renders a numeric argument as form text, or "" when absent.
func numberArg(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireFloat(key)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
