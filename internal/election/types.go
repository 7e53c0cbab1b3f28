package election

import "time"

// Status is the lifecycle state of an election.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusPaused    Status = "paused"
	StatusClosed    Status = "closed"
	StatusArchived  Status = "archived"
)

// Eligibility controls which capability set may see and vote in an election.
type Eligibility string

const (
	EligibilityMembers Eligibility = "members"
	EligibilityAdmins  Eligibility = "admins"
	EligibilityAll     Eligibility = "all"
)

// VotingType constrains the shape of a valid answer selection.
type VotingType string

const (
	SingleChoice VotingType = "single_choice"
	MultiChoice  VotingType = "multi_choice"
)

// Answer is one selectable option. IDs are server-assigned and stable once
// the election is published.
type Answer struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Election is the catalog record owned by the ballot recorder.
type Election struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Question      string      `json:"question"`
	Description   string      `json:"description,omitempty"`
	Answers       []Answer    `json:"answers"`
	VotingType    VotingType  `json:"voting_type"`
	MaxSelections int         `json:"max_selections"`
	Eligibility   Eligibility `json:"eligibility"`
	Status        Status      `json:"status"`
	Hidden        bool        `json:"hidden"`

	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`

	CreatedBy string     `json:"created_by"`
	UpdatedBy string     `json:"updated_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	OpenedAt  *time.Time `json:"opened_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// AnswerIDs returns the ids of the election's answers in order.
func (e Election) AnswerIDs() []string {
	out := make([]string, 0, len(e.Answers))
	for _, a := range e.Answers {
		out = append(out, a.ID)
	}
	return out
}

// HasAnswer reports whether id names one of the election's answers.
func (e Election) HasAnswer(id string) bool {
	for _, a := range e.Answers {
		if a.ID == id {
			return true
		}
	}
	return false
}
