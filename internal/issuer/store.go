package issuer

import (
	"context"
	"sync"

	"ballotbox.org/internal/election"
)

// Store records which subjects already hold a credential for which election.
// That fact is the only thing the issuer retains, and it never leaves the
// issuer.
//
// Issue must treat the local insert and the register callback as one logical
// operation: the issuance fact is durable only if register succeeded, and a
// concurrent issuance for the same (subject, election) pair loses with
// election.ErrConflict.
type Store interface {
	Issue(ctx context.Context, subjectID, electionID string, register func(context.Context) error) error
	HasIssued(ctx context.Context, subjectID, electionID string) (bool, error)
	Ping(ctx context.Context) error
}

type issuanceKey struct {
	subject  string
	election string
}

// InMemory implements Store for tests and local runs.
type InMemory struct {
	mu     sync.Mutex
	issued map[issuanceKey]struct{}
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{issued: make(map[issuanceKey]struct{})}
}

func (s *InMemory) Issue(ctx context.Context, subjectID, electionID string, register func(context.Context) error) error {
	key := issuanceKey{subject: subjectID, election: electionID}

	// Reserve the pair first so a racing request fails fast, then release the
	// reservation if registration with the recorder does not go through.
	s.mu.Lock()
	if _, ok := s.issued[key]; ok {
		s.mu.Unlock()
		return election.Conflict("already_issued", "a credential was already issued for this election")
	}
	s.issued[key] = struct{}{}
	s.mu.Unlock()

	if err := register(ctx); err != nil {
		s.mu.Lock()
		delete(s.issued, key)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *InMemory) HasIssued(ctx context.Context, subjectID, electionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.issued[issuanceKey{subject: subjectID, election: electionID}]
	return ok, nil
}

func (s *InMemory) Ping(ctx context.Context) error { return nil }
