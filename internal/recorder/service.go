package recorder

import (
	"context"
	"errors"
	"time"

	"ballotbox.org/internal/audit"
	"ballotbox.org/internal/election"
	"ballotbox.org/internal/identity"
	"ballotbox.org/internal/obs"
	"ballotbox.org/internal/rbac"
)

// Service implements the recorder's member-facing, administrative and S2S
// operations on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService wires a Service. now may be nil.
func NewService(store Store, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, errors.New("recorder: store is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}, nil
}

// --- Member surface ---

// VisibleElections lists the catalog subset the caller may see.
func (s *Service) VisibleElections(ctx context.Context) ([]election.Election, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return nil, identity.ErrAuthentication
	}
	catalog, err := s.store.ListElections(ctx)
	if err != nil {
		return nil, err
	}
	return election.VisibleTo(catalog, id), nil
}

// VisibleElection fetches one election under the member visibility rule.
// Invisible elections are indistinguishable from missing ones.
func (s *Service) VisibleElection(ctx context.Context, electionID string) (election.Election, error) {
	id, ok := identity.FromContext(ctx)
	if !ok {
		return election.Election{}, identity.ErrAuthentication
	}
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return election.Election{}, err
	}
	if !election.MemberVisible(e, id) {
		return election.Election{}, election.Missing("election_not_found", "election not found")
	}
	return e, nil
}

// SubmitBallot spends a credential and records the selections. The store
// performs the authoritative window, shape and consumption checks atomically;
// exactly one of any set of racing submissions for the same token succeeds.
func (s *Service) SubmitBallot(ctx context.Context, token, electionID string, answerIDs []string) (Ballot, error) {
	if _, ok := identity.FromContext(ctx); !ok {
		return Ballot{}, identity.ErrAuthentication
	}
	b, err := s.store.ConsumeAndRecord(ctx, token, electionID, answerIDs, s.now())
	if err != nil {
		obs.BallotRejected(rejectionClass(err))
		return Ballot{}, err
	}
	obs.BallotRecorded()
	// No performed_by: a ballot event must never carry subject identity.
	_ = audit.Log(ctx, audit.Entry{
		Action:       audit.ActionBallotRecorded,
		ResourceType: "ballot",
		ResourceID:   b.ID,
		Details:      map[string]string{"election_id": electionID},
	})
	return b, nil
}

// CredentialStatus reports whether a credential has been consumed.
func (s *Service) CredentialStatus(ctx context.Context, token string) (Credential, error) {
	if _, ok := identity.FromContext(ctx); !ok {
		return Credential{}, identity.ErrAuthentication
	}
	return s.store.GetCredential(ctx, token)
}

func rejectionClass(err error) string {
	switch {
	case errors.Is(err, election.ErrValidation):
		return "validation"
	case errors.Is(err, election.ErrState):
		return "state"
	case errors.Is(err, election.ErrConflict):
		return "conflict"
	case errors.Is(err, election.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// --- Administrative surface ---

// AdminListElections lists every election, drafts included. Hidden elections
// appear only when includeHidden is set.
func (s *Service) AdminListElections(ctx context.Context, includeHidden bool) ([]election.Election, error) {
	if err := rbac.Authorize(ctx, rbac.OpElectionList); err != nil {
		return nil, err
	}
	catalog, err := s.store.ListElections(ctx)
	if err != nil {
		return nil, err
	}
	if includeHidden {
		return catalog, nil
	}
	out := make([]election.Election, 0, len(catalog))
	for _, e := range catalog {
		if !e.Hidden {
			out = append(out, e)
		}
	}
	return out, nil
}

// AdminGetElection fetches one election regardless of visibility.
func (s *Service) AdminGetElection(ctx context.Context, electionID string) (election.Election, error) {
	if err := rbac.Authorize(ctx, rbac.OpElectionGet); err != nil {
		return election.Election{}, err
	}
	return s.store.GetElection(ctx, electionID)
}

// CreateElection creates a draft and applies the initial content update.
func (s *Service) CreateElection(ctx context.Context, upd election.DraftUpdate) (election.Election, error) {
	if err := rbac.Authorize(ctx, rbac.OpElectionCreate); err != nil {
		return election.Election{}, err
	}
	id, _ := identity.FromContext(ctx)
	if upd.Title == nil {
		return election.Election{}, election.Invalid("title_required", "title must not be empty")
	}
	e := election.NewDraft(id.Subject, s.now())
	if err := election.ApplyDraftUpdate(&e, upd, id.Subject, s.now()); err != nil {
		return election.Election{}, err
	}
	if err := s.store.InsertElection(ctx, e); err != nil {
		return election.Election{}, err
	}
	_ = audit.Log(ctx, audit.Entry{
		Action:       audit.ActionElectionCreated,
		PerformedBy:  id.Subject,
		ResourceType: "election",
		ResourceID:   e.ID,
	})
	return e, nil
}

// UpdateElection mutates draft content. Editing past draft is a StateError.
func (s *Service) UpdateElection(ctx context.Context, electionID string, upd election.DraftUpdate) (election.Election, error) {
	if err := rbac.Authorize(ctx, rbac.OpElectionUpdate); err != nil {
		return election.Election{}, err
	}
	id, _ := identity.FromContext(ctx)
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return election.Election{}, err
	}
	prev := e.Status
	if err := election.ApplyDraftUpdate(&e, upd, id.Subject, s.now()); err != nil {
		return election.Election{}, err
	}
	if err := s.store.UpdateElection(ctx, e, prev); err != nil {
		return election.Election{}, err
	}
	_ = audit.Log(ctx, audit.Entry{
		Action:       audit.ActionElectionUpdated,
		PerformedBy:  id.Subject,
		ResourceType: "election",
		ResourceID:   e.ID,
	})
	return e, nil
}

// Publish opens a draft for voting.
func (s *Service) Publish(ctx context.Context, electionID string) (election.Election, error) {
	return s.transition(ctx, electionID, rbac.OpElectionPublish, audit.ActionElectionPublished, election.Publish)
}

// Pause suspends a published election.
func (s *Service) Pause(ctx context.Context, electionID string) (election.Election, error) {
	return s.transition(ctx, electionID, rbac.OpElectionPause, audit.ActionElectionPaused, election.Pause)
}

// Resume reopens a paused election.
func (s *Service) Resume(ctx context.Context, electionID string) (election.Election, error) {
	return s.transition(ctx, electionID, rbac.OpElectionResume, audit.ActionElectionResumed, election.Resume)
}

// Close ends voting.
func (s *Service) Close(ctx context.Context, electionID string) (election.Election, error) {
	return s.transition(ctx, electionID, rbac.OpElectionClose, audit.ActionElectionClosed, election.Close)
}

// Archive moves a closed election to its terminal state.
func (s *Service) Archive(ctx context.Context, electionID string) (election.Election, error) {
	return s.transition(ctx, electionID, rbac.OpElectionArchive, audit.ActionElectionArchived, election.Archive)
}

// Hide sets the soft-delete flag.
func (s *Service) Hide(ctx context.Context, electionID string) (election.Election, error) {
	return s.transition(ctx, electionID, rbac.OpElectionHide, audit.ActionElectionHidden,
		func(e *election.Election, actor string, now time.Time) error {
			return election.SetHidden(e, true, actor, now)
		})
}

// Unhide clears the soft-delete flag.
func (s *Service) Unhide(ctx context.Context, electionID string) (election.Election, error) {
	return s.transition(ctx, electionID, rbac.OpElectionUnhide, audit.ActionElectionUnhidden,
		func(e *election.Election, actor string, now time.Time) error {
			return election.SetHidden(e, false, actor, now)
		})
}

func (s *Service) transition(
	ctx context.Context,
	electionID string,
	op rbac.Operation,
	action string,
	apply func(*election.Election, string, time.Time) error,
) (election.Election, error) {
	if err := rbac.Authorize(ctx, op); err != nil {
		return election.Election{}, err
	}
	id, _ := identity.FromContext(ctx)
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return election.Election{}, err
	}
	prev := e.Status
	if err := apply(&e, id.Subject, s.now()); err != nil {
		return election.Election{}, err
	}
	if err := s.store.UpdateElection(ctx, e, prev); err != nil {
		return election.Election{}, err
	}
	_ = audit.Log(ctx, audit.Entry{
		Action:       action,
		PerformedBy:  id.Subject,
		ResourceType: "election",
		ResourceID:   e.ID,
		Details: map[string]string{
			"previous_status": string(prev),
			"new_status":      string(e.Status),
		},
	})
	return e, nil
}

// HardDelete permanently removes an election. Superadmin only, irreversible.
func (s *Service) HardDelete(ctx context.Context, electionID string) error {
	if err := rbac.Authorize(ctx, rbac.OpElectionDelete); err != nil {
		return err
	}
	id, _ := identity.FromContext(ctx)
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteElection(ctx, electionID); err != nil {
		return err
	}
	_ = audit.Log(ctx, audit.Entry{
		Action:       audit.ActionElectionDeleted,
		PerformedBy:  id.Subject,
		ResourceType: "election",
		ResourceID:   e.ID,
		Details:      map[string]string{"status": string(e.Status)},
	})
	return nil
}

// AdminResults returns per-answer counts for a closed election.
func (s *Service) AdminResults(ctx context.Context, electionID string) ([]AnswerCount, error) {
	if err := rbac.Authorize(ctx, rbac.OpElectionResults); err != nil {
		return nil, err
	}
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if e.Status != election.StatusClosed && e.Status != election.StatusArchived {
		return nil, election.StateFailure("results_not_available", "results are available once voting has closed")
	}
	return s.store.Results(ctx, electionID)
}

// --- S2S surface ---

// RegisterCredential registers a bare {token, election} pair from the issuer.
// Idempotent per the store contract.
func (s *Service) RegisterCredential(ctx context.Context, token, electionID string) error {
	if token == "" {
		return election.Invalid("token_required", "token must not be empty")
	}
	if err := s.store.RegisterCredential(ctx, token, electionID, s.now()); err != nil {
		return err
	}
	// No performed_by: the recorder never learns who holds the token.
	_ = audit.Log(ctx, audit.Entry{
		Action:       audit.ActionCredentialRegistered,
		ResourceType: "election",
		ResourceID:   electionID,
	})
	return nil
}

// S2SGetElection hands the issuer the catalog record it needs for its
// eligibility check. Only the election id crosses the boundary in the
// request.
func (s *Service) S2SGetElection(ctx context.Context, electionID string) (election.Election, error) {
	return s.store.GetElection(ctx, electionID)
}

// S2SResults returns aggregated per-answer counts. Never per-ballot records.
func (s *Service) S2SResults(ctx context.Context, electionID string) ([]AnswerCount, error) {
	e, err := s.store.GetElection(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if e.Status == election.StatusDraft {
		return nil, election.StateFailure("results_not_available", "election has not opened")
	}
	return s.store.Results(ctx, electionID)
}
