// Package issuer authenticates members, decides eligibility and mints
// anonymous single-use voting credentials. The only payload it ever sends the
// recorder is {token, election_id}; subject identity stays on this side of
// the boundary.
package issuer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"ballotbox.org/internal/audit"
	"ballotbox.org/internal/election"
	"ballotbox.org/internal/identity"
	"ballotbox.org/internal/obs"
	"ballotbox.org/internal/rbac"
)

// ErrRegistration indicates the S2S registration with the recorder failed.
// The member sees a retryable generic failure; no credential was issued.
var ErrRegistration = errors.New("credential registration failed")

// RecorderClient is the issuer's view of the ballot recorder's S2S surface.
type RecorderClient interface {
	GetElection(ctx context.Context, electionID string) (election.Election, error)
	RegisterCredential(ctx context.Context, token, electionID string) error
}

// Service implements credential issuance.
type Service struct {
	store    Store
	recorder RecorderClient
	now      func() time.Time
}

// NewService wires a Service. now may be nil.
func NewService(store Store, recorder RecorderClient, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, errors.New("issuer: store is required")
	}
	if recorder == nil {
		return nil, errors.New("issuer: recorder client is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, recorder: recorder, now: now}, nil
}

// IssueCredential authenticates the caller (from context), checks eligibility
// for the election and mints a single-use credential. Re-issuance for the
// same (subject, election) pair is rejected with a ConflictError. The local
// issuance record and the S2S registration either both commit or neither
// does.
func (s *Service) IssueCredential(ctx context.Context, electionID string) (string, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return "", identity.ErrAuthentication
	}

	e, err := s.recorder.GetElection(ctx, electionID)
	if err != nil {
		return "", err
	}
	// Drafts and hidden elections do not exist as far as members know.
	if e.Status == election.StatusDraft || e.Hidden {
		return "", election.Missing("election_not_found", "election not found")
	}
	if !election.Eligible(e.Eligibility, id) {
		_ = audit.Log(ctx, audit.Entry{
			Action:       audit.ActionAccessDenied,
			PerformedBy:  id.Subject,
			ResourceType: "election",
			ResourceID:   electionID,
			Details:      map[string]string{"operation": "issuer.credential.issue"},
		})
		return "", rbac.ErrAuthorization
	}
	switch e.Status {
	case election.StatusPublished, election.StatusPaused:
	default:
		return "", election.StateFailure(election.CodeElectionClosed, "voting has ended")
	}

	token, err := mintToken()
	if err != nil {
		return "", fmt.Errorf("issuer: mint token: %w", err)
	}

	err = s.store.Issue(ctx, id.Subject, electionID, func(ctx context.Context) error {
		if err := s.recorder.RegisterCredential(ctx, token, electionID); err != nil {
			return fmt.Errorf("%w: %v", ErrRegistration, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	obs.CredentialIssued()
	// The token must never appear here: an audit entry carrying both the
	// subject and the token would link the two.
	_ = audit.Log(ctx, audit.Entry{
		Action:       audit.ActionCredentialIssued,
		PerformedBy:  id.Subject,
		ResourceType: "election",
		ResourceID:   electionID,
	})
	return token, nil
}

// HasCredential reports whether the caller already holds a credential for the
// election.
func (s *Service) HasCredential(ctx context.Context, electionID string) (bool, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return false, identity.ErrAuthentication
	}
	return s.store.HasIssued(ctx, id.Subject, electionID)
}

// mintToken returns 256 bits of cryptographic randomness, URL-safe encoded.
// Collision probability is negligible; the recorder's uniqueness constraint
// backstops it regardless.
func mintToken() (string, error) {
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
