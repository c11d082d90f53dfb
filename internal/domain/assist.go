package domain

import "time"

// SpellingError is one misspelled word.
type SpellingError struct {
	Word        string   `json:"word"`
	Position    int      `json:"position"`
	Suggestions []string `json:"suggestions"`
	Context     string   `json:"context"`
}

// GrammarError is one grammar issue.
type GrammarError struct {
	ErrorType   string `json:"error_type"`
	Position    int    `json:"position"`
	Original    string `json:"original"`
	Suggestion  string `json:"suggestion"`
	Explanation string `json:"explanation"`
	Context     string `json:"context"`
}

// PolishChange describes one edit made while polishing.
type PolishChange struct {
	ChangeType  string `json:"change_type"`
	Before      string `json:"before"`
	After       string `json:"after"`
	Position    int    `json:"position"`
	Explanation string `json:"explanation"`
}

// PolishResult is an abstract rewrite preview.
type PolishResult struct {
	Original        string         `json:"original"`
	Polished        string         `json:"polished"`
	Changes         []PolishChange `json:"changes"`
	Rationale       string         `json:"rationale"`
	ConfidenceScore float64        `json:"confidence_score"`
}

// KeywordSuggestion is one ranked keyword.
type KeywordSuggestion struct {
	Keyword  string  `json:"keyword"`
	Score    float64 `json:"relevance_score"`
	Reason   string  `json:"reason"`
	Category string  `json:"category"`
}

// SynopsisLength selects the target word range.
type SynopsisLength string

const (
	SynopsisShort  SynopsisLength = "short"
	SynopsisMedium SynopsisLength = "medium"
	SynopsisLong   SynopsisLength = "long"
)

// WordRange returns the inclusive word bounds for a length; ok is false for unknown values.
func (l SynopsisLength) WordRange() (lo, hi int, ok bool) {
	switch l {
	case SynopsisShort:
		return 100, 150, true
	case SynopsisMedium:
		return 150, 250, true
	case SynopsisLong:
		return 250, 350, true
	}
	return 0, 0, false
}

// Synopsis is a neutral, anonymised paper summary.
type Synopsis struct {
	PaperID          string         `json:"paper_id"`
	ConferenceID     string         `json:"conference_id"`
	Synopsis         string         `json:"synopsis"`
	KeyThemes        []string       `json:"key_themes"`
	Methodology      string         `json:"methodology"`
	ContributionType string         `json:"contribution_type"`
	WordCount        int            `json:"word_count"`
	Length           SynopsisLength `json:"length"`
	Rationale        string         `json:"rationale"`
	ModelUsed        string         `json:"model_used"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

type Claim struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type Method struct {
	Name    string `json:"name"`
	Details string `json:"details"`
}

type Dataset struct {
	Name  string `json:"name"`
	Usage string `json:"usage"`
}

// KeyPoints are structured highlights of a paper.
type KeyPoints struct {
	PaperID     string    `json:"paper_id"`
	Claims      []Claim   `json:"claims"`
	Methods     []Method  `json:"methods"`
	Datasets    []Dataset `json:"datasets"`
	Novelty     string    `json:"novelty"`
	Limitations string    `json:"limitations"`
	ModelUsed   string    `json:"model_used"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Email template types.
const (
	EmailAccept   = "accept_notification"
	EmailReject   = "reject_notification"
	EmailReminder = "reviewer_reminder"
)

// EmailDraft is a chair-reviewed notification draft.
type EmailDraft struct {
	DraftID         string            `json:"draft_id"`
	ConferenceID    string            `json:"conference_id"`
	TemplateType    string            `json:"template_type"`
	Subject         string            `json:"subject"`
	Body            string            `json:"body"`
	Personalization map[string]string `json:"personalization"`
	RequiresReview  bool              `json:"requires_review"`
	Rationale       string            `json:"rationale"`
	GeneratedAt     time.Time         `json:"generated_at"`
}
