package httpserver

import (
	"net/http"

	"github.com/fairyhunter13/confms-ai-service/internal/usecase"
)

type textCheckRequest struct {
	Text         string `json:"text" validate:"required,max=10000"`
	Language     string `json:"language" validate:"omitempty,oneof=en vi"`
	ConferenceID string `json:"conference_id" validate:"required,max=100"`
	UserID       string `json:"user_id" validate:"max=100"`
}

func (req textCheckRequest) input() usecase.TextCheckInput {
	return usecase.TextCheckInput{
		Caller:   usecase.Caller{ConferenceID: req.ConferenceID, UserID: req.UserID},
		Text:     req.Text,
		Language: req.Language,
	}
}

// decodeText decodes a text-check body and rejects binary payloads.
func decodeText(w http.ResponseWriter, r *http.Request) (textCheckRequest, bool) {
	var req textCheckRequest
	if details, err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, details)
		return req, false
	}
	if details, err := requireText(map[string]string{"text": req.Text}); err != nil {
		writeError(w, r, err, details)
		return req, false
	}
	return req, true
}

// CheckSpellingHandler serves POST /api/v1/authors/check-spelling.
func (s *Server) CheckSpellingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeText(w, r)
		if !ok {
			return
		}
		errs, err := s.Authors.CheckSpelling(r.Context(), req.input())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"errors":          errs,
			"total_errors":    len(errs),
			"feature_enabled": true,
		})
	}
}

// CheckGrammarHandler serves POST /api/v1/authors/check-grammar.
func (s *Server) CheckGrammarHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeText(w, r)
		if !ok {
			return
		}
		errs, err := s.Authors.CheckGrammar(r.Context(), req.input())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"errors":            errs,
			"suggestions_count": len(errs),
			"feature_enabled":   true,
		})
	}
}

// PolishAbstractHandler serves POST /api/v1/authors/polish-abstract.
func (s *Server) PolishAbstractHandler() http.HandlerFunc {
	type request struct {
		Abstract        string `json:"abstract" validate:"required,max=2000"`
		Language        string `json:"language" validate:"omitempty,oneof=en vi"`
		ConferenceID    string `json:"conference_id" validate:"required,max=100"`
		PaperID         string `json:"paper_id" validate:"max=100"`
		UserID          string `json:"user_id" validate:"max=100"`
		PreserveMeaning *bool  `json:"preserve_meaning"`
		EnhanceTone     *bool  `json:"enhance_tone"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		if details, err := requireText(map[string]string{"abstract": req.Abstract}); err != nil {
			writeError(w, r, err, details)
			return
		}
		res, err := s.Authors.PolishAbstract(r.Context(), usecase.PolishInput{
			Caller:          usecase.Caller{ConferenceID: req.ConferenceID, UserID: req.UserID},
			PaperID:         req.PaperID,
			Abstract:        req.Abstract,
			Language:        req.Language,
			PreserveMeaning: boolOr(req.PreserveMeaning, true),
			EnhanceTone:     boolOr(req.EnhanceTone, true),
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"original":         res.Original,
			"polished":         res.Polished,
			"changes":          res.Changes,
			"rationale":        res.Rationale,
			"confidence_score": res.ConfidenceScore,
			"preview_mode":     true,
			"feature_enabled":  true,
		})
	}
}

// SuggestKeywordsHandler serves POST /api/v1/authors/suggest-keywords.
func (s *Server) SuggestKeywordsHandler() http.HandlerFunc {
	type request struct {
		Title        string `json:"title" validate:"max=500"`
		Abstract     string `json:"abstract" validate:"max=2000"`
		Language     string `json:"language" validate:"omitempty,oneof=en vi"`
		ConferenceID string `json:"conference_id" validate:"required,max=100"`
		PaperID      string `json:"paper_id" validate:"max=100"`
		MaxKeywords  int    `json:"max_keywords" validate:"omitempty,min=1,max=10"`
		UserID       string `json:"user_id" validate:"max=100"`
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
		in := usecase.KeywordInput{
			Caller:      usecase.Caller{ConferenceID: req.ConferenceID, UserID: req.UserID},
			PaperID:     req.PaperID,
			Title:       req.Title,
			Abstract:    req.Abstract,
			Language:    req.Language,
			MaxKeywords: req.MaxKeywords,
		}
		kws, err := s.Authors.SuggestKeywords(r.Context(), in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		limit := req.MaxKeywords
		if limit == 0 {
			limit = 5
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"keywords":        kws,
			"max_keywords":    limit,
			"feature_enabled": true,
		})
	}
}

// ApplyPolishHandler serves POST /api/v1/authors/apply-polish.
func (s *Server) ApplyPolishHandler() http.HandlerFunc {
	type request struct {
		PaperID          string `json:"paper_id" validate:"required,max=100"`
		PolishedAbstract string `json:"polished_abstract" validate:"required,max=2000"`
		UserConfirmed    *bool  `json:"user_confirmed"`
		UserID           string `json:"user_id" validate:"required,max=100"`
		ConferenceID     string `json:"conference_id" validate:"required,max=100"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		res, err := s.Authors.ApplyPolish(r.Context(), usecase.ApplyPolishInput{
			Caller:           usecase.Caller{ConferenceID: req.ConferenceID, UserID: req.UserID},
			PaperID:          req.PaperID,
			PolishedAbstract: req.PolishedAbstract,
			UserConfirmed:    boolOr(req.UserConfirmed, true),
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
