package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meltforce/mapty/internal/geo"
	"github.com/meltforce/mapty/internal/mapview"
	"github.com/meltforce/mapty/internal/models"
	"github.com/meltforce/mapty/internal/server"
	"github.com/meltforce/mapty/internal/storage"
	"github.com/meltforce/mapty/internal/tracker"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by method and path. Verifies the HTTP client sends correct paths.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

func sampleWorkout() *models.Workout {
	return &models.Workout{
		ID:          "w1",
		CreatedAt:   time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC),
		Coords:      models.Coordinates{Lat: 38.7, Lng: -9.14},
		DistanceKm:  5,
		DurationMin: 25,
		Activity:    &models.Running{CadenceSPM: 178, PaceMinPerKm: 5},
		Description: "Running on March 7",
	}
}

// TestListWorkouts verifies the client decodes the workouts array.
func TestListWorkouts(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/workouts": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusOK, []*models.Workout{sampleWorkout()})
		},
	})
	defer ts.Close()

	got, err := NewHTTPClient(ts.URL, "").ListWorkouts(context.Background())
	if err != nil {
		t.Fatalf("ListWorkouts: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].ID != "w1" || got[0].Kind() != models.KindRunning {
		t.Errorf("workout = %s %s, want w1 running", got[0].ID, got[0].Kind())
	}
}

// TestLogWorkoutSendsCoords verifies the create body carries the form fields,
// the explicit coordinates and the API key.
func TestLogWorkoutSendsCoords(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/workouts": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("X-API-Key"); got != "secret" {
				t.Errorf("X-API-Key = %q, want secret", got)
			}
			var body struct {
				Kind     string             `json:"kind"`
				Distance string             `json:"distance"`
				Cadence  string             `json:"cadence"`
				Coords   models.Coordinates `json:"coords"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Kind != "running" || body.Distance != "5" || body.Cadence != "178" {
				t.Errorf("body = %+v, want running 5 178", body)
			}
			if body.Coords != (models.Coordinates{Lat: 38.7, Lng: -9.14}) {
				t.Errorf("coords = %+v, want 38.7,-9.14", body.Coords)
			}
			writeTestJSON(t, w, http.StatusCreated, sampleWorkout())
		},
	})
	defer ts.Close()

	client := NewHTTPClient(ts.URL+"/", "secret")
	w, err := client.LogWorkout(context.Background(), models.Coordinates{Lat: 38.7, Lng: -9.14},
		tracker.Submission{Kind: "running", Distance: "5", Duration: "25", Cadence: "178"})
	if err != nil {
		t.Fatalf("LogWorkout: %v", err)
	}
	if w.ID != "w1" {
		t.Errorf("ID = %q, want w1", w.ID)
	}
}

// TestHTTPClientErrors verifies status codes map onto the tracker errors and
// that the server's error message is kept.
func TestHTTPClientErrors(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/workouts/missing": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusNotFound, map[string]string{"error": "workout not found: missing"})
		},
		"PATCH /api/v1/workouts/w1": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusBadRequest, map[string]string{"error": "bad distance"})
		},
		"DELETE /api/v1/workouts/w1": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusConflict, map[string]string{"error": "map is not ready"})
		},
	})
	defer ts.Close()
	client := NewHTTPClient(ts.URL, "")
	ctx := context.Background()

	if _, err := client.GetWorkout(ctx, "missing"); !errors.Is(err, tracker.ErrNotFound) {
		t.Errorf("GetWorkout err = %v, want ErrNotFound", err)
	}
	if _, err := client.EditWorkout(ctx, "w1", "distance", "-1"); !errors.Is(err, tracker.ErrValidation) {
		t.Errorf("EditWorkout err = %v, want ErrValidation", err)
	}
	err := client.DeleteWorkout(ctx, "w1")
	if err == nil || err.Error() != "httpclient: DELETE /api/v1/workouts/w1 returned 409: map is not ready" {
		t.Errorf("DeleteWorkout err = %v", err)
	}
}

// TestHTTPClientAgainstServer runs every DataSource method against the real
// REST API to keep both sides of the wire in step.
func TestHTTPClientAgainstServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	layer := mapview.NewLayer(discard)
	store := tracker.New(storage.NewMemory(), layer, geo.Static{Coords: models.Coordinates{Lat: 1, Lng: 2}}, discard)
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	<-store.Settled()

	ts := httptest.NewServer(server.New(ctx, store, layer, nil, "key", discard))
	defer ts.Close()
	client := NewHTTPClient(ts.URL, "key")

	w, err := client.LogWorkout(ctx, models.Coordinates{Lat: 46, Lng: 7.7},
		tracker.Submission{Kind: "cycling", Distance: "27", Duration: "95", Elevation: "-523"})
	if err != nil {
		t.Fatalf("LogWorkout: %v", err)
	}

	got, err := client.GetWorkout(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkout: %v", err)
	}
	if got.Coords != (models.Coordinates{Lat: 46, Lng: 7.7}) {
		t.Errorf("coords = %+v, want 46,7.7", got.Coords)
	}

	res, err := client.EditWorkout(ctx, w.ID, "duration", "60")
	if err != nil {
		t.Fatalf("EditWorkout: %v", err)
	}
	if res.DerivedName != "speed" || res.Derived != 27 {
		t.Errorf("derived = %s %v, want speed 27", res.DerivedName, res.Derived)
	}

	if err := client.DeleteWorkout(ctx, w.ID); err != nil {
		t.Fatalf("DeleteWorkout: %v", err)
	}
	list, err := client.ListWorkouts(ctx)
	if err != nil {
		t.Fatalf("ListWorkouts: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len = %d after delete, want 0", len(list))
	}
}
