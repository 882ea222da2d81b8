package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/mapty/internal/geo"
	"github.com/meltforce/mapty/internal/mapview"
	"github.com/meltforce/mapty/internal/models"
	"github.com/meltforce/mapty/internal/tracker"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

type stateResponse struct {
	tracker.Status
	LocationPending bool `json:"location_pending"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{Status: s.store.Status()}
	if s.browser != nil {
		resp.LocationPending = s.browser.Pending()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	workouts := s.store.Workouts()

	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := models.ParseKind(k)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		filtered := workouts[:0]
		for _, wo := range workouts {
			if wo.Kind() == kind {
				filtered = append(filtered, wo)
			}
		}
		workouts = filtered
	}
	writeJSON(w, http.StatusOK, workouts)
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	wo, err := s.store.Workout(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

// createRequest is a form submission. Coords is optional; without it the
// workout is placed at the last clicked map point.
type createRequest struct {
	tracker.Submission
	Coords *models.Coordinates `json:"coords,omitempty"`
}

func (s *Server) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	var (
		wo  *models.Workout
		err error
	)
	if req.Coords != nil {
		if !req.Coords.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates out of range"})
			return
		}
		wo, err = s.store.SubmitAt(r.Context(), *req.Coords, req.Submission)
	} else {
		wo, err = s.store.Submit(r.Context(), req.Submission)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("workout logged", "id", wo.ID, "user", userInfoFromContext(r).Login)
	writeJSON(w, http.StatusCreated, wo)
}

type editRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleEditWorkout(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.Field == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field is required"})
		return
	}

	res, err := s.store.EditFieldText(r.Context(), chi.URLParam(r, "id"), req.Field, req.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteWorkout(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFocusWorkout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.MoveTo(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReset wipes everything and reloads the map from a fresh location fetch.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ResetAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.layer.Reset()
	if s.browser != nil {
		s.browser.Reset()
	}
	if err := s.store.Start(s.appCtx); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("reset", "user", userInfoFromContext(r).Login)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.layer.Snapshot())
}

func (s *Server) handleMapClick(w http.ResponseWriter, r *http.Request) {
	var c models.Coordinates
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if !c.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates out of range"})
		return
	}
	if err := s.layer.Click(c); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// locationRequest carries the page's geolocation result: either a position
// or the error message the browser reported.
type locationRequest struct {
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Error string   `json:"error"`
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	if s.browser == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "location is not taken from the browser"})
		return
	}
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	switch {
	case req.Error != "":
		s.browser.Fail(errors.New(req.Error))
	case req.Lat != nil && req.Lng != nil:
		if err := s.browser.Resolve(models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}); err != nil {
			s.writeError(w, err)
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lng, or error, are required"})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// writeError maps store errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tracker.ErrValidation),
		errors.Is(err, tracker.ErrDerivedReadOnly),
		errors.Is(err, tracker.ErrUnknownField),
		errors.Is(err, tracker.ErrNoPointSelected),
		errors.Is(err, geo.ErrInvalidCoordinates):
		status = http.StatusBadRequest
	case errors.Is(err, tracker.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tracker.ErrMapUnready),
		errors.Is(err, tracker.ErrLocationUnavailable),
		errors.Is(err, mapview.ErrNotInitialized):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}

	body := map[string]string{"error": err.Error()}
	var ve *tracker.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
