package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantumlife/focuscoach/internal/catalog"
	"github.com/quantumlife/focuscoach/internal/core"
	"github.com/quantumlife/focuscoach/internal/intervention"
)

// maxBodyBytes bounds request bodies, catalogs included.
const maxBodyBytes = 1 << 20

// DecideRequest is the body of POST /v1/users/{userID}/decisions.
type DecideRequest struct {
	Context map[string]interface{} `json:"context"`
}

// FeedbackResponse reports whether feedback was applied.
type FeedbackResponse struct {
	Status core.FeedbackStatus `json:"status"`
}

// CandidatesResponse is the selector's view of a context.
type CandidatesResponse struct {
	Assessed   core.AssessedState       `json:"assessed"`
	Candidates []intervention.Candidate `json:"candidates"`
	Warnings   []string                 `json:"warnings,omitempty"`
}

// CatalogResponse lists the active templates.
type CatalogResponse struct {
	Templates  []core.InterventionTemplate `json:"templates"`
	Categories []string                    `json:"categories"`
}

func userIDParam(r *http.Request) core.UserID {
	return core.UserID(chi.URLParam(r, "userID"))
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return nil
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   s.version,
		"templates": len(s.svc.Catalog().Templates()),
		"time":      time.Now().UTC(),
	})
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	userID := userIDParam(r)

	var req DecideRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}

	result, err := s.svc.AssessAndDecide(r.Context(), userID, req.Context)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if result.Intervention != nil {
		s.hub.Publish(userID, EventIntervention, result.Intervention)
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	userID := userIDParam(r)

	var req DecideRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondErr(w, err)
		return
	}

	snap, warnings := intervention.ParseContext(req.Context)
	candidates, assessed, err := s.svc.Rank(r.Context(), userID, snap)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if candidates == nil {
		candidates = []intervention.Candidate{}
	}
	respondJSON(w, http.StatusOK, CandidatesResponse{
		Assessed:   assessed,
		Candidates: candidates,
		Warnings:   warnings,
	})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	userID := userIDParam(r)
	id := core.InterventionID(chi.URLParam(r, "interventionID"))

	var fb core.Feedback
	if err := decodeJSON(r, &fb); err != nil {
		s.respondErr(w, err)
		return
	}
	if fb.Satisfaction < 0 || fb.Satisfaction > 1 || (fb.Engagement != nil && (*fb.Engagement < 0 || *fb.Engagement > 1)) {
		respondError(w, http.StatusBadRequest, "satisfaction and engagement must be within [0,1]")
		return
	}

	status, err := s.svc.RecordFeedback(r.Context(), userID, id, fb)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if status == core.FeedbackOK {
		s.hub.Publish(userID, EventFeedback, map[string]interface{}{
			"intervention_id": id,
			"completion":      fb.Completion,
			"satisfaction":    fb.Satisfaction,
		})
	}
	respondJSON(w, http.StatusOK, FeedbackResponse{Status: status})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Profile(r.Context(), userIDParam(r))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutTraits(w http.ResponseWriter, r *http.Request) {
	var traits core.Traits
	if err := decodeJSON(r, &traits); err != nil {
		s.respondErr(w, err)
		return
	}

	p, err := s.svc.SetTraits(r.Context(), userIDParam(r), traits)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ResetUser(r.Context(), userIDParam(r)); err != nil {
		s.respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.svc.Catalog()
	resp := CatalogResponse{Templates: cat.Templates()}
	if c, ok := cat.(*catalog.Catalog); ok {
		resp.Categories = c.Categories()
	}
	respondJSON(w, http.StatusOK, resp)
}

// handlePutCatalog replaces the catalog. The body is a catalog document in
// YAML or JSON; durations are strings such as "2m".
func (s *Server) handlePutCatalog(w http.ResponseWriter, r *http.Request) {
	c, err := catalog.Parse(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if err := s.svc.RegisterCatalog(c.Templates()); err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CatalogResponse{Templates: c.Templates(), Categories: c.Categories()})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID := userIDParam(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user id required")
		return
	}
	s.hub.ServeUser(w, r, userID)
}
