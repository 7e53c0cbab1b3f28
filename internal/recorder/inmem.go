package recorder

import (
	"context"
	"sync"
	"time"

	"ballotbox.org/internal/election"
	"ballotbox.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. It backs
// tests and local runs; deployments use the Postgres store.
type InMemory struct {
	mu          sync.RWMutex
	elections   map[string]election.Election
	order       []string
	credentials map[string]*Credential
	ballots     []Ballot
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		elections:   make(map[string]election.Election),
		credentials: make(map[string]*Credential),
	}
}

func (s *InMemory) InsertElection(ctx context.Context, e election.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[e.ID]; ok {
		return election.Conflict("election_exists", "election already exists")
	}
	s.elections[e.ID] = cloneElection(e)
	s.order = append(s.order, e.ID)
	return nil
}

func (s *InMemory) GetElection(ctx context.Context, id string) (election.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.elections[id]
	if !ok {
		return election.Election{}, election.Missing("election_not_found", "election not found")
	}
	return cloneElection(e), nil
}

func (s *InMemory) ListElections(ctx context.Context) ([]election.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]election.Election, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneElection(s.elections[id]))
	}
	return out, nil
}

func (s *InMemory) UpdateElection(ctx context.Context, e election.Election, expect election.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.elections[e.ID]
	if !ok {
		return election.Missing("election_not_found", "election not found")
	}
	if current.Status != expect {
		return election.Conflict("state_changed", "election was modified concurrently")
	}
	s.elections[e.ID] = cloneElection(e)
	return nil
}

func (s *InMemory) DeleteElection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[id]; !ok {
		return election.Missing("election_not_found", "election not found")
	}
	delete(s.elections, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	// Hard delete cascades, matching the Postgres schema: credentials and
	// ballots belonging to the election go with it.
	for token, c := range s.credentials {
		if c.ElectionID == id {
			delete(s.credentials, token)
		}
	}
	kept := s.ballots[:0]
	for _, b := range s.ballots {
		if b.ElectionID != id {
			kept = append(kept, b)
		}
	}
	s.ballots = kept
	return nil
}

func (s *InMemory) RegisterCredential(ctx context.Context, token, electionID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[electionID]; !ok {
		return election.Missing("election_not_found", "election not found")
	}
	if existing, ok := s.credentials[token]; ok {
		if existing.ElectionID == electionID {
			return nil
		}
		return election.Conflict("credential_mismatch", "token already registered for another election")
	}
	s.credentials[token] = &Credential{ElectionID: electionID, IssuedAt: now.UTC()}
	return nil
}

func (s *InMemory) GetCredential(ctx context.Context, token string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[token]
	if !ok {
		return Credential{}, election.Missing("credential_not_found", "credential not found")
	}
	return *c, nil
}

func (s *InMemory) ConsumeAndRecord(ctx context.Context, token, electionID string, answerIDs []string, now time.Time) (Ballot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[token]
	if !ok {
		return Ballot{}, election.Missing("credential_not_found", "credential not found")
	}
	if cred.ElectionID != electionID {
		return Ballot{}, election.Invalid("credential_mismatch", "credential was issued for a different election")
	}
	if cred.ConsumedAt != nil {
		return Ballot{}, election.Conflict("already_voted", "this credential has already been used to vote")
	}

	e, ok := s.elections[electionID]
	if !ok {
		return Ballot{}, election.Missing("election_not_found", "election not found")
	}
	// Window and shape checks use the election state held under the same
	// lock that guards consumption, so a concurrent close cannot slip in.
	if err := election.CheckWindow(e, now); err != nil {
		return Ballot{}, err
	}
	if err := election.CheckSelections(e, answerIDs); err != nil {
		return Ballot{}, err
	}

	ts := now.UTC()
	cred.ConsumedAt = &ts
	b := Ballot{
		ID:           ids.New(),
		CredentialID: token,
		ElectionID:   electionID,
		AnswerIDs:    append([]string(nil), answerIDs...),
		RecordedAt:   ts,
	}
	s.ballots = append(s.ballots, b)
	return b, nil
}

func (s *InMemory) Results(ctx context.Context, electionID string) ([]AnswerCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.elections[electionID]
	if !ok {
		return nil, election.Missing("election_not_found", "election not found")
	}
	counts := make(map[string]int64, len(e.Answers))
	for _, b := range s.ballots {
		if b.ElectionID != electionID {
			continue
		}
		for _, id := range b.AnswerIDs {
			counts[id]++
		}
	}
	out := make([]AnswerCount, 0, len(e.Answers))
	for _, a := range e.Answers {
		out = append(out, AnswerCount{AnswerID: a.ID, Text: a.Text, Count: counts[a.ID]})
	}
	return out, nil
}

func (s *InMemory) Ping(ctx context.Context) error { return nil }

func cloneElection(e election.Election) election.Election {
	out := e
	out.Answers = append([]election.Answer(nil), e.Answers...)
	if e.ScheduledStart != nil {
		t := *e.ScheduledStart
		out.ScheduledStart = &t
	}
	if e.ScheduledEnd != nil {
		t := *e.ScheduledEnd
		out.ScheduledEnd = &t
	}
	if e.OpenedAt != nil {
		t := *e.OpenedAt
		out.OpenedAt = &t
	}
	if e.ClosedAt != nil {
		t := *e.ClosedAt
		out.ClosedAt = &t
	}
	return out
}
