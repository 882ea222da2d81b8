package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/mapty/internal/models"
)

func (h *handlers) workouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	workouts, err := h.ds.ListWorkouts(ctx)
	if err != nil {
		return nil, err
	}

	data, err := models.EncodeWorkouts(workouts)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) summary(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	workouts, err := h.ds.ListWorkouts(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(summarize(workouts))
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// KindSummary totals the workouts of one kind. Average is the mean pace
// (running) or speed (cycling) over the whole distance and duration.
type KindSummary struct {
	Count       int     `json:"count"`
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
	AverageName string  `json:"average_name"`
	Average     float64 `json:"average"`
}

func summarize(workouts []*models.Workout) map[models.Kind]KindSummary {
	out := map[models.Kind]KindSummary{
		models.KindRunning: {AverageName: "pace"},
		models.KindCycling: {AverageName: "speed"},
	}
	for _, w := range workouts {
		s := out[w.Kind()]
		s.Count++
		s.DistanceKm += w.DistanceKm
		s.DurationMin += w.DurationMin
		out[w.Kind()] = s
	}

	for kind, s := range out {
		if s.Count == 0 {
			continue
		}
		switch kind {
		case models.KindRunning:
			s.Average = s.DurationMin / s.DistanceKm
		case models.KindCycling:
			s.Average = s.DistanceKm / (s.DurationMin / 60)
		}
		out[kind] = s
	}
	return out
}
