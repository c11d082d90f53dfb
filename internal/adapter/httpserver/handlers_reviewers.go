package httpserver

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	"github.com/fairyhunter13/confms-ai-service/internal/usecase"
)

// GenerateSynopsisHandler serves POST /api/v1/reviewers/generate-synopsis.
func (s *Server) GenerateSynopsisHandler() http.HandlerFunc {
	type request struct {
		PaperID      string   `json:"paper_id" validate:"required,max=100"`
		Title        string   `json:"title" validate:"required,max=500"`
		Abstract     string   `json:"abstract" validate:"required,max=2000"`
		Keywords     []string `json:"keywords" validate:"max=20,dive,max=100"`
		AuthorNames  []string `json:"author_names" validate:"max=50,dive,max=200"`
		ConferenceID string   `json:"conference_id" validate:"required,max=100"`
		Length       string   `json:"length" validate:"omitempty,oneof=short medium long"`
		Language     string   `json:"language" validate:"omitempty,oneof=en vi"`
		ReviewerID   string   `json:"reviewer_id" validate:"max=100"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		if details, err := requireText(map[string]string{"title": req.Title, "abstract": req.Abstract}); err != nil {
			writeError(w, r, err, details)
			return
		}
		syn, err := s.Reviewers.GenerateSynopsis(r.Context(), usecase.SynopsisInput{
			Caller:      usecase.Caller{ConferenceID: req.ConferenceID, UserID: req.ReviewerID},
			PaperID:     req.PaperID,
			Title:       req.Title,
			Abstract:    req.Abstract,
			Keywords:    req.Keywords,
			AuthorNames: req.AuthorNames,
			Length:      domain.SynopsisLength(req.Length),
			Language:    req.Language,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, syn)
	}
}

// ExtractKeyPointsHandler serves POST /api/v1/reviewers/extract-keypoints.
func (s *Server) ExtractKeyPointsHandler() http.HandlerFunc {
	type request struct {
		PaperID      string `json:"paper_id" validate:"required,max=100"`
		Title        string `json:"title" validate:"required,max=500"`
		Abstract     string `json:"abstract" validate:"required,max=2000"`
		ConferenceID string `json:"conference_id" validate:"required,max=100"`
		Language     string `json:"language" validate:"omitempty,oneof=en vi"`
		ReviewerID   string `json:"reviewer_id" validate:"max=100"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		if details, err := requireText(map[string]string{"title": req.Title, "abstract": req.Abstract}); err != nil {
			writeError(w, r, err, details)
			return
		}
		kp, err := s.Reviewers.ExtractKeyPoints(r.Context(), usecase.KeyPointsInput{
			Caller:   usecase.Caller{ConferenceID: req.ConferenceID, UserID: req.ReviewerID},
			PaperID:  req.PaperID,
			Title:    req.Title,
			Abstract: req.Abstract,
			Language: req.Language,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, kp)
	}
}

// GetSynopsisHandler serves GET /api/v1/reviewers/paper-synopsis/{paper_id}?conference_id=.
func (s *Server) GetSynopsisHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paperID := chi.URLParam(r, "paper_id")
		conf := r.URL.Query().Get("conference_id")
		if conf == "" {
			writeError(w, r, fmt.Errorf("%w: conference_id query parameter is required", domain.ErrInvalidArgument), map[string]string{"conference_id": "required"})
			return
		}
		syn, err := s.Reviewers.GetSynopsis(r.Context(), conf, paperID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, syn)
	}
}
