package domain

import "time"

// Feature names gating AI endpoints.
const (
	FeatureGrammarCheck           = "grammar_check"
	FeaturePolishContent          = "polish_content"
	FeatureKeywordSuggestion      = "keyword_suggestion"
	FeaturePaperSynopsis          = "paper_synopsis"
	FeatureReviewerSimilarity     = "reviewer_similarity"
	FeatureAssignmentSuggestion   = "assignment_suggestion"
	FeatureDecisionRecommendation = "decision_recommendation"
	FeatureReviewSummary          = "review_summary"
	FeatureEmailDraft             = "email_draft"
)

// AvailableFeatures lists every feature a conference can toggle, in catalogue order.
var AvailableFeatures = []string{
	FeatureGrammarCheck,
	FeaturePolishContent,
	FeatureKeywordSuggestion,
	FeaturePaperSynopsis,
	FeatureReviewerSimilarity,
	FeatureAssignmentSuggestion,
	FeatureDecisionRecommendation,
	FeatureReviewSummary,
	FeatureEmailDraft,
}

// IsKnownFeature reports whether name is in AvailableFeatures.
func IsKnownFeature(name string) bool {
	for _, f := range AvailableFeatures {
		if f == name {
			return true
		}
	}
	return false
}

// FeatureFlag is a stored toggle.
type FeatureFlag struct {
	ConferenceID string
	Feature      string
	Enabled      bool
	UpdatedAt    time.Time
}

// AuditEntry records one AI interaction.
type AuditEntry struct {
	ID            string
	Timestamp     time.Time
	ConferenceID  string
	UserID        string
	Feature       string
	Action        string
	Prompt        string
	ModelID       string
	InputHash     string
	OutputSummary string
	Accepted      *bool
	Metadata      map[string]any
}

// AuditQuery filters audit entries. Empty strings mean no filter.
type AuditQuery struct {
	ConferenceID string
	UserID       string
	Feature      string
	Limit        int
	Offset       int
}

// UsageQuery scopes usage statistics. Zero times mean unbounded.
type UsageQuery struct {
	ConferenceID string
	Feature      string
	Start        time.Time
	End          time.Time
}

// FeatureUsage aggregates decisions for a single feature.
type FeatureUsage struct {
	Feature        string  `json:"feature"`
	Total          int     `json:"total"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	Pending        int     `json:"pending"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// UsageStats is the per-conference aggregate.
type UsageStats struct {
	ConferenceID string         `json:"conference_id"`
	Start        time.Time      `json:"start_date"`
	End          time.Time      `json:"end_date"`
	Features     []FeatureUsage `json:"features"`
	Total        int            `json:"total_usage"`
	Accepted     int            `json:"total_accepted"`
	Rejected     int            `json:"total_rejected"`
}

// Rate returns accepted / (accepted + rejected), 0 when nothing was decided.
func (u FeatureUsage) Rate() float64 {
	decided := u.Accepted + u.Rejected
	if decided == 0 {
		return 0
	}
	return float64(u.Accepted) / float64(decided)
}
