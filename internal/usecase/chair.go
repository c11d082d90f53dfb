package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/confms-ai-service/internal/config"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
	obsctx "github.com/fairyhunter13/confms-ai-service/internal/observability"
	"github.com/fairyhunter13/confms-ai-service/pkg/llmjson"
)

// DefaultDraftTTL is how long an unapproved email draft is kept.
const DefaultDraftTTL = 72 * time.Hour

// ChairService drafts notification emails for chairs to review.
type ChairService struct {
	*Assistant
	Docs     domain.DocumentStore
	DraftTTL time.Duration
	newID    func() string
}

// NewChairService keeps drafts in docs for ttl (DefaultDraftTTL when zero).
func NewChairService(a *Assistant, docs domain.DocumentStore, ttl time.Duration) ChairService {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return ChairService{Assistant: a, Docs: docs, DraftTTL: ttl, newID: uuid.NewString}
}

// DraftKey is the document key of a stored draft.
func DraftKey(draftID string) string { return "email_draft:" + draftID }

// PendingPaper is one overdue review in a reminder.
type PendingPaper struct {
	PaperID  string `json:"paper_id"`
	Title    string `json:"title"`
	Deadline string `json:"deadline"`
}

// DraftEmailInput carries the fields of every template type; which are required depends on EmailType.
type DraftEmailInput struct {
	Caller
	EmailType           string
	ConferenceName      string
	PaperID             string
	PaperTitle          string
	AuthorName          string
	CameraReadyDeadline string
	ReviewsSummary      string
	ReviewerID          string
	ReviewerName        string
	PendingPapers       []PendingPaper
	Language            string
}

func (in DraftEmailInput) prompt() (string, map[string]string, error) {
	var missing []string
	need := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	var name string
	pers := map[string]string{}
	switch in.EmailType {
	case domain.EmailAccept, domain.EmailReject:
		need("paper_id", in.PaperID)
		need("paper_title", in.PaperTitle)
		need("author_name", in.AuthorName)
		name = config.PromptEmailAccept
		if in.EmailType == domain.EmailReject {
			name = config.PromptEmailReject
		}
		pers["paper_id"] = in.PaperID
		pers["paper_title"] = in.PaperTitle
		pers["author_name"] = in.AuthorName
	case domain.EmailReminder:
		need("reviewer_id", in.ReviewerID)
		need("reviewer_name", in.ReviewerName)
		name = config.PromptEmailReminder
		pers["reviewer_id"] = in.ReviewerID
		pers["reviewer_name"] = in.ReviewerName
	default:
		return "", nil, fmt.Errorf("%w: unknown email_type %q", domain.ErrInvalidArgument, in.EmailType)
	}
	if len(missing) > 0 {
		return "", nil, fmt.Errorf("%w: %s requires %s", domain.ErrInvalidArgument, in.EmailType, strings.Join(missing, ", "))
	}
	if in.ConferenceName != "" {
		pers["conference_name"] = in.ConferenceName
	}
	return name, pers, nil
}

type emailReply struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// DraftEmail generates a draft that always requires chair review before sending.
func (s ChairService) DraftEmail(ctx context.Context, in DraftEmailInput) (domain.EmailDraft, error) {
	name, pers, err := in.prompt()
	if err != nil {
		return domain.EmailDraft{}, err
	}
	lang, err := normalizeLanguage(in.Language)
	if err != nil {
		return domain.EmailDraft{}, err
	}
	ctx = obsctx.WithConference(ctx, in.ConferenceID, domain.FeatureEmailDraft)
	if err := s.Guard.Allow(ctx, in.ConferenceID, domain.FeatureEmailDraft); err != nil {
		return domain.EmailDraft{}, err
	}
	pending := in.PendingPapers
	if pending == nil {
		pending = []PendingPaper{}
	}
	ex, err := s.ask(ctx, name, struct {
		PaperTitle          string
		AuthorName          string
		ConferenceName      string
		CameraReadyDeadline string
		ReviewsSummary      string
		ReviewerName        string
		PendingPapers       []PendingPaper
		Language            string
	}{in.PaperTitle, in.AuthorName, in.ConferenceName, in.CameraReadyDeadline, in.ReviewsSummary, in.ReviewerName, pending, lang})
	if err != nil {
		return domain.EmailDraft{}, err
	}
	res := llmjson.Decode[emailReply](ex.raw)
	if !res.OK() || strings.TrimSpace(res.Value.Body) == "" {
		obsctx.LoggerFromContext(ctx).Error("email reply not usable", slog.String("email_type", in.EmailType), slog.Any("error", res.Err))
		return domain.EmailDraft{}, fmt.Errorf("%w: email reply could not be parsed", domain.ErrUpstreamSchema)
	}

	newID := s.newID
	if newID == nil {
		newID = uuid.NewString
	}
	draft := domain.EmailDraft{
		DraftID:         newID(),
		ConferenceID:    in.ConferenceID,
		TemplateType:    in.EmailType,
		Subject:         res.Value.Subject,
		Body:            res.Value.Body,
		Personalization: pers,
		RequiresReview:  true,
		Rationale:       fmt.Sprintf("Generated %s draft; review and edit before sending.", in.EmailType),
		GeneratedAt:     time.Now().UTC(),
	}
	if s.Docs != nil {
		if err := s.Docs.PutJSON(ctx, DraftKey(draft.DraftID), draft, int64(s.DraftTTL/time.Second)); err != nil {
			return domain.EmailDraft{}, fmt.Errorf("op=usecase.DraftEmail: %w", err)
		}
	}
	s.record(ctx, in.Caller, domain.FeatureEmailDraft, "draft_email", ex, nil, map[string]any{
		"draft_id":   draft.DraftID,
		"email_type": in.EmailType,
	})
	return draft, nil
}

// ApproveDraftInput is the chair's decision on a stored draft.
type ApproveDraftInput struct {
	DraftID       string
	EditedSubject *string
	EditedBody    *string
	Approved      bool
	UserID        string
}

// ApproveDraftResult is returned whether or not the draft was approved.
type ApproveDraftResult struct {
	Success      bool   `json:"success"`
	DraftID      string `json:"draft_id"`
	FinalSubject string `json:"final_subject,omitempty"`
	FinalBody    string `json:"final_body,omitempty"`
	ReadyToSend  bool   `json:"ready_to_send"`
	Message      string `json:"message"`
}

// ApproveDraft applies the chair's edits and records the approval against the draft's conference.
func (s ChairService) ApproveDraft(ctx context.Context, in ApproveDraftInput) (ApproveDraftResult, error) {
	if in.DraftID == "" {
		return ApproveDraftResult{}, fmt.Errorf("%w: draft_id is required", domain.ErrInvalidArgument)
	}
	if !in.Approved {
		return ApproveDraftResult{
			Success: false,
			DraftID: in.DraftID,
			Message: "Draft not approved. Edit and resubmit, or discard it.",
		}, nil
	}
	if s.Docs == nil {
		return ApproveDraftResult{}, fmt.Errorf("%w: draft %s", domain.ErrNotFound, in.DraftID)
	}
	var draft domain.EmailDraft
	if err := s.Docs.GetJSON(ctx, DraftKey(in.DraftID), &draft); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ApproveDraftResult{}, fmt.Errorf("%w: draft %s not found or expired", domain.ErrNotFound, in.DraftID)
		}
		return ApproveDraftResult{}, fmt.Errorf("op=usecase.ApproveDraft: %w", err)
	}
	edited := false
	if in.EditedSubject != nil {
		draft.Subject = *in.EditedSubject
		edited = true
	}
	if in.EditedBody != nil {
		draft.Body = *in.EditedBody
		edited = true
	}

	s.Audit.Record(ctx, AuditRecord{
		ConferenceID: draft.ConferenceID,
		UserID:       in.UserID,
		Feature:      domain.FeatureEmailDraft,
		Action:       "approve_email_draft",
		Prompt:       "draft_id: " + in.DraftID,
		ModelID:      "system",
		Output:       draft.Subject,
		Accepted:     boolPtr(true),
		Metadata:     map[string]any{"draft_id": in.DraftID, "edited": edited, "template_type": draft.TemplateType},
	})
	return ApproveDraftResult{
		Success:      true,
		DraftID:      in.DraftID,
		FinalSubject: draft.Subject,
		FinalBody:    draft.Body,
		ReadyToSend:  true,
		Message:      "Draft approved and ready to send.",
	}, nil
}
