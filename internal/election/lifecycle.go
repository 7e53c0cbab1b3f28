package election

import (
	"fmt"
	"strings"
	"time"

	"ballotbox.org/internal/ids"
)

// Lifecycle and draft-editing failure codes.
const (
	CodeNotDraft          = "not_draft"
	CodeNotPublished      = "not_published"
	CodeNotPaused         = "not_paused"
	CodeNotClosable       = "not_closable"
	CodeNotClosed         = "not_closed"
	CodeArchivedImmutable = "archived_immutable"
	CodeNoAnswers         = "no_answers"
)

// NewDraft creates an empty draft election owned by the acting administrator.
func NewDraft(actor string, now time.Time) Election {
	return Election{
		ID:            ids.New(),
		Answers:       []Answer{},
		VotingType:    SingleChoice,
		MaxSelections: 1,
		Eligibility:   EligibilityMembers,
		Status:        StatusDraft,
		CreatedBy:     actor,
		UpdatedBy:     actor,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}
}

// AnswerInput is one entry of a submitted answer list. Entries without an id
// are new; ids are assigned server-side and survive resubmission of the list.
type AnswerInput struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// DraftUpdate mutates draft content. Nil fields are left untouched. A zero
// scheduled timestamp clears the corresponding bound.
type DraftUpdate struct {
	Title          *string       `json:"title,omitempty"`
	Question       *string       `json:"question,omitempty"`
	Description    *string       `json:"description,omitempty"`
	Answers        []AnswerInput `json:"answers,omitempty"`
	VotingType     *VotingType   `json:"voting_type,omitempty"`
	MaxSelections  *int          `json:"max_selections,omitempty"`
	Eligibility    *Eligibility  `json:"eligibility,omitempty"`
	ScheduledStart *time.Time    `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time    `json:"scheduled_end,omitempty"`
}

// ApplyDraftUpdate validates and applies an update to a draft. Content is
// editable only before publication.
func ApplyDraftUpdate(e *Election, upd DraftUpdate, actor string, now time.Time) error {
	if e.Status != StatusDraft {
		return StateFailure(CodeNotDraft, "election content can only be edited while in draft")
	}
	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if title == "" {
			return Invalid("title_required", "title must not be empty")
		}
		e.Title = title
	}
	if upd.Question != nil {
		question := strings.TrimSpace(*upd.Question)
		if question == "" {
			return Invalid("question_required", "question must not be empty")
		}
		e.Question = question
	}
	if upd.Description != nil {
		e.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.VotingType != nil {
		switch *upd.VotingType {
		case SingleChoice, MultiChoice:
			e.VotingType = *upd.VotingType
		default:
			return Invalid("unknown_voting_type", fmt.Sprintf("unsupported voting type %q", *upd.VotingType))
		}
	}
	if upd.Eligibility != nil {
		switch *upd.Eligibility {
		case EligibilityMembers, EligibilityAdmins, EligibilityAll:
			e.Eligibility = *upd.Eligibility
		default:
			return Invalid("unknown_eligibility", fmt.Sprintf("unsupported eligibility %q", *upd.Eligibility))
		}
	}
	if upd.Answers != nil {
		answers, err := buildAnswers(e.Answers, upd.Answers)
		if err != nil {
			return err
		}
		e.Answers = answers
	}
	if upd.MaxSelections != nil {
		e.MaxSelections = *upd.MaxSelections
	}
	if e.MaxSelections < 1 {
		return Invalid("max_selections_too_small", "max_selections must be at least 1")
	}
	if len(e.Answers) > 0 && e.MaxSelections > len(e.Answers) {
		return Invalid("max_selections_too_large",
			fmt.Sprintf("max_selections must not exceed the %d available answers", len(e.Answers)))
	}
	if upd.ScheduledStart != nil {
		e.ScheduledStart = normalizeBound(*upd.ScheduledStart)
	}
	if upd.ScheduledEnd != nil {
		e.ScheduledEnd = normalizeBound(*upd.ScheduledEnd)
	}
	if e.ScheduledStart != nil && e.ScheduledEnd != nil && !e.ScheduledEnd.After(*e.ScheduledStart) {
		return Invalid("window_inverted", "scheduled_end must be after scheduled_start")
	}

	e.UpdatedBy = actor
	e.UpdatedAt = now.UTC()
	return nil
}

func buildAnswers(existing []Answer, inputs []AnswerInput) ([]Answer, error) {
	known := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		known[a.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(inputs))
	out := make([]Answer, 0, len(inputs))
	for _, in := range inputs {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return nil, Invalid("answer_text_required", "answer text must not be empty")
		}
		id := strings.TrimSpace(in.ID)
		if id == "" {
			id = ids.New()
		} else if _, ok := known[id]; !ok {
			return nil, Invalid(CodeUnknownAnswer, fmt.Sprintf("answer %s does not exist", id))
		}
		if _, dup := seen[id]; dup {
			return nil, Invalid(CodeDuplicateAnswer, fmt.Sprintf("answer %s listed more than once", id))
		}
		seen[id] = struct{}{}
		out = append(out, Answer{ID: id, Text: text})
	}
	return out, nil
}

func normalizeBound(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// Publish opens a draft for voting and freezes its content. An election with
// zero answers is never publishable.
func Publish(e *Election, actor string, now time.Time) error {
	if e.Status != StatusDraft {
		return StateFailure(CodeNotDraft, "only a draft election can be published")
	}
	if len(e.Answers) == 0 {
		return StateFailure(CodeNoAnswers, "an election without answers cannot be published")
	}
	if e.MaxSelections < 1 || e.MaxSelections > len(e.Answers) {
		return Invalid("max_selections_too_large",
			fmt.Sprintf("max_selections must be between 1 and %d", len(e.Answers)))
	}
	ts := now.UTC()
	e.Status = StatusPublished
	e.OpenedAt = &ts
	e.UpdatedBy = actor
	e.UpdatedAt = ts
	return nil
}

// Pause suspends a published election from accepting ballots.
func Pause(e *Election, actor string, now time.Time) error {
	if e.Status != StatusPublished {
		return StateFailure(CodeNotPublished, "only a published election can be paused")
	}
	e.Status = StatusPaused
	e.UpdatedBy = actor
	e.UpdatedAt = now.UTC()
	return nil
}

// Resume reopens a paused election.
func Resume(e *Election, actor string, now time.Time) error {
	if e.Status != StatusPaused {
		return StateFailure(CodeNotPaused, "only a paused election can be resumed")
	}
	e.Status = StatusPublished
	e.UpdatedBy = actor
	e.UpdatedAt = now.UTC()
	return nil
}

// Close ends voting. Valid from published or paused.
func Close(e *Election, actor string, now time.Time) error {
	if e.Status != StatusPublished && e.Status != StatusPaused {
		return StateFailure(CodeNotClosable, "only a published or paused election can be closed")
	}
	ts := now.UTC()
	e.Status = StatusClosed
	e.ClosedAt = &ts
	e.UpdatedBy = actor
	e.UpdatedAt = ts
	return nil
}

// Archive moves a closed election to its terminal, informational state.
func Archive(e *Election, actor string, now time.Time) error {
	if e.Status != StatusClosed {
		return StateFailure(CodeNotClosed, "only a closed election can be archived")
	}
	e.Status = StatusArchived
	e.UpdatedBy = actor
	e.UpdatedAt = now.UTC()
	return nil
}

// SetHidden toggles the soft-delete flag. Orthogonal to the lifecycle and
// fully reversible, but the terminal archived state is immutable.
func SetHidden(e *Election, hidden bool, actor string, now time.Time) error {
	if e.Status == StatusArchived {
		return StateFailure(CodeArchivedImmutable, "an archived election cannot be changed")
	}
	e.Hidden = hidden
	e.UpdatedBy = actor
	e.UpdatedAt = now.UTC()
	return nil
}
