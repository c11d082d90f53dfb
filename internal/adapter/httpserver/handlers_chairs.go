package httpserver

import (
	"net/http"

	"github.com/fairyhunter13/confms-ai-service/internal/usecase"
)

// DraftEmailHandler serves POST /api/v1/chairs/draft-email.
func (s *Server) DraftEmailHandler() http.HandlerFunc {
	type pendingPaper struct {
		PaperID  string `json:"paper_id" validate:"max=100"`
		Title    string `json:"title" validate:"max=500"`
		Deadline string `json:"deadline" validate:"max=50"`
	}
	type request struct {
		EmailType           string         `json:"email_type" validate:"required"`
		PaperID             string         `json:"paper_id" validate:"max=100"`
		PaperTitle          string         `json:"paper_title" validate:"max=500"`
		AuthorName          string         `json:"author_name" validate:"max=200"`
		ReviewsSummary      string         `json:"reviews_summary" validate:"max=5000"`
		ConferenceID        string         `json:"conference_id" validate:"required,max=100"`
		ConferenceName      string         `json:"conference_name" validate:"max=300"`
		CameraReadyDeadline string         `json:"camera_ready_deadline" validate:"max=50"`
		ReviewerID          string         `json:"reviewer_id" validate:"max=100"`
		ReviewerName        string         `json:"reviewer_name" validate:"max=200"`
		PendingPapers       []pendingPaper `json:"pending_papers" validate:"max=100,dive"`
		Language            string         `json:"language" validate:"omitempty,oneof=en vi"`
		UserID              string         `json:"user_id" validate:"max=100"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		if details, err := requireText(map[string]string{"reviews_summary": req.ReviewsSummary, "paper_title": req.PaperTitle}); err != nil {
			writeError(w, r, err, details)
			return
		}
		pending := make([]usecase.PendingPaper, len(req.PendingPapers))
		for i, p := range req.PendingPapers {
			pending[i] = usecase.PendingPaper(p)
		}
		draft, err := s.Chairs.DraftEmail(r.Context(), usecase.DraftEmailInput{
			Caller:              usecase.Caller{ConferenceID: req.ConferenceID, UserID: req.UserID},
			EmailType:           req.EmailType,
			ConferenceName:      req.ConferenceName,
			PaperID:             req.PaperID,
			PaperTitle:          req.PaperTitle,
			AuthorName:          req.AuthorName,
			CameraReadyDeadline: req.CameraReadyDeadline,
			ReviewsSummary:      req.ReviewsSummary,
			ReviewerID:          req.ReviewerID,
			ReviewerName:        req.ReviewerName,
			PendingPapers:       pending,
			Language:            req.Language,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, draft)
	}
}

// ApproveEmailDraftHandler serves PUT /api/v1/chairs/approve-email-draft.
func (s *Server) ApproveEmailDraftHandler() http.HandlerFunc {
	type request struct {
		DraftID       string  `json:"draft_id" validate:"required,max=100"`
		EditedSubject *string `json:"edited_subject" validate:"omitempty,max=500"`
		EditedBody    *string `json:"edited_body" validate:"omitempty,max=20000"`
		Approved      *bool   `json:"approved"`
		UserID        string  `json:"user_id" validate:"required,max=100"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if details, err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err, details)
			return
		}
		res, err := s.Chairs.ApproveDraft(r.Context(), usecase.ApproveDraftInput{
			DraftID:       req.DraftID,
			EditedSubject: req.EditedSubject,
			EditedBody:    req.EditedBody,
			Approved:      boolOr(req.Approved, true),
			UserID:        req.UserID,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
