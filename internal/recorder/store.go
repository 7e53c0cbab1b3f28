package recorder

import (
	"context"
	"time"

	"ballotbox.org/internal/election"
)

// Credential is a registered single-use voting credential. It deliberately
// has no field that could identify the subject holding it.
type Credential struct {
	ElectionID string     `json:"election_id"`
	IssuedAt   time.Time  `json:"issued_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// Consumed reports whether the credential has been spent.
func (c Credential) Consumed() bool { return c.ConsumedAt != nil }

// Ballot is the immutable record of one consumed credential's selections.
// No field links to a subject identifier, directly or transitively.
type Ballot struct {
	ID           string    `json:"id"`
	CredentialID string    `json:"-"`
	ElectionID   string    `json:"election_id"`
	AnswerIDs    []string  `json:"selected_answer_ids"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// AnswerCount is one row of an aggregated result.
type AnswerCount struct {
	AnswerID string `json:"answer_id"`
	Text     string `json:"text"`
	Count    int64  `json:"count"`
}

// Store is the recorder's persistence boundary. Implementations must make
// ConsumeAndRecord atomic: under concurrent submission of the same token
// exactly one caller wins and every other caller observes ErrConflict, and
// the election state used for the voting-window check is read inside the same
// transaction as the consumption attempt.
type Store interface {
	InsertElection(ctx context.Context, e election.Election) error
	GetElection(ctx context.Context, id string) (election.Election, error)
	ListElections(ctx context.Context) ([]election.Election, error)
	// UpdateElection persists e conditionally on the stored status still
	// being expect, so concurrent lifecycle transitions cannot be lost.
	UpdateElection(ctx context.Context, e election.Election, expect election.Status) error
	DeleteElection(ctx context.Context, id string) error

	// RegisterCredential is idempotent: re-registering the same token for the
	// same election is a no-op; the same token for a different election is a
	// conflict.
	RegisterCredential(ctx context.Context, token, electionID string, now time.Time) error
	GetCredential(ctx context.Context, token string) (Credential, error)
	ConsumeAndRecord(ctx context.Context, token, electionID string, answerIDs []string, now time.Time) (Ballot, error)

	Results(ctx context.Context, electionID string) ([]AnswerCount, error)

	Ping(ctx context.Context) error
}
