package election

import "time"

// Voting-window failure codes. Each non-published status gets a distinct,
// user-facing reason.
const (
	CodeElectionDraft    = "election_draft"
	CodeElectionPaused   = "election_paused"
	CodeElectionClosed   = "election_closed"
	CodeElectionArchived = "election_archived"
	CodeVotingNotStarted = "voting_not_started"
	CodeVotingEnded      = "voting_ended"
)

// CheckWindow decides whether the election accepts ballots at the given
// instant. Callers must re-evaluate this at submission time from election
// state read inside the consumption transaction; a verdict from an earlier
// listing can be stale.
func CheckWindow(e Election, now time.Time) error {
	switch e.Status {
	case StatusPublished:
	case StatusDraft:
		return StateFailure(CodeElectionDraft, "election is not open for voting yet")
	case StatusPaused:
		return StateFailure(CodeElectionPaused, "voting is temporarily paused")
	case StatusClosed:
		return StateFailure(CodeElectionClosed, "voting has ended")
	case StatusArchived:
		return StateFailure(CodeElectionArchived, "election has been archived")
	default:
		return StateFailure(CodeElectionDraft, "election is not open for voting")
	}
	if e.ScheduledStart != nil && now.Before(*e.ScheduledStart) {
		return StateFailure(CodeVotingNotStarted, "voting has not started yet")
	}
	if e.ScheduledEnd != nil && now.After(*e.ScheduledEnd) {
		return StateFailure(CodeVotingEnded, "voting has ended")
	}
	return nil
}
