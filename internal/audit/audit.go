// Package audit is the write-only sink every state-changing operation and
// every access denial reports to. Entries identify actors only by the opaque
// subject id from the identity assertion; ballot-related entries carry no
// actor at all. Details must never contain a national identifier, name, email
// or phone number, and issuance entries must never contain the credential
// token (an entry holding both actor and token would link the two).
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"ballotbox.org/internal/obs"
)

// Action values form a closed taxonomy.
const (
	ActionElectionCreated      = "election_created"
	ActionElectionUpdated      = "election_updated"
	ActionElectionPublished    = "election_published"
	ActionElectionPaused       = "election_paused"
	ActionElectionResumed      = "election_resumed"
	ActionElectionClosed       = "election_closed"
	ActionElectionArchived     = "election_archived"
	ActionElectionHidden       = "election_hidden"
	ActionElectionUnhidden     = "election_unhidden"
	ActionElectionDeleted      = "election_deleted"
	ActionCredentialIssued     = "credential_issued"
	ActionCredentialRegistered = "credential_registered"
	ActionBallotRecorded       = "ballot_recorded"
	ActionAccessDenied         = "access_denied"
)

// Entry is one audit record.
type Entry struct {
	Action        string            `json:"action"`
	PerformedBy   string            `json:"performed_by,omitempty"`
	ResourceType  string            `json:"resource_type,omitempty"`
	ResourceID    string            `json:"resource_id,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Timestamp     time.Time         `json:"ts"`
	Details       map[string]string `json:"details,omitempty"`
}

type ctxKey string

const correlationIDKey ctxKey = "audit_correlation_id"

// WithCorrelationID attaches the request's correlation identifier to the
// context so entries from both services can be joined per client request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation id, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// Log writes the entry to the shared JSON sink. The correlation id is filled
// from the context when the caller did not set one.
func Log(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.Action) == "" {
		return errors.New("audit: action is required")
	}
	if e.CorrelationID == "" {
		e.CorrelationID = CorrelationIDFromContext(ctx)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	payload := map[string]any{
		"type":   "audit",
		"action": e.Action,
		"ts":     e.Timestamp.Format(time.RFC3339Nano),
	}
	if e.PerformedBy != "" {
		payload["performed_by"] = e.PerformedBy
	}
	if e.ResourceType != "" {
		payload["resource_type"] = e.ResourceType
	}
	if e.ResourceID != "" {
		payload["resource_id"] = e.ResourceID
	}
	if e.CorrelationID != "" {
		payload["correlation_id"] = e.CorrelationID
	}
	if len(e.Details) > 0 {
		payload["details"] = e.Details
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
