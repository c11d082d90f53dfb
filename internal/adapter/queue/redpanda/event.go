package redpanda

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

// TopicAudit is the default topic carrying audit events.
const TopicAudit = "ai-audit-events"

// auditEvent is the wire form of domain.AuditEntry.
type auditEvent struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	ConferenceID  string         `json:"conference_id"`
	UserID        string         `json:"user_id"`
	Feature       string         `json:"feature"`
	Action        string         `json:"action"`
	Prompt        string         `json:"prompt"`
	ModelID       string         `json:"model_id"`
	InputHash     string         `json:"input_hash"`
	OutputSummary string         `json:"output_summary"`
	Accepted      *bool          `json:"accepted"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// EncodeAuditEntry marshals e to its event payload.
func EncodeAuditEntry(e domain.AuditEntry) ([]byte, error) {
	return json.Marshal(auditEvent(e))
}

// DecodeAuditEntry parses an event payload. Events without an id are rejected
// because the id is what makes the insert idempotent.
func DecodeAuditEntry(b []byte) (domain.AuditEntry, error) {
	var ev auditEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return domain.AuditEntry{}, fmt.Errorf("decode audit event: %w", err)
	}
	if ev.ID == "" {
		return domain.AuditEntry{}, fmt.Errorf("decode audit event: missing id")
	}
	return domain.AuditEntry(ev), nil
}
