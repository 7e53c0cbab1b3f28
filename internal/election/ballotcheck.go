package election

import "fmt"

// Selection validation codes.
const (
	CodeEmptySelection      = "empty_selection"
	CodeUnknownAnswer       = "unknown_answer"
	CodeDuplicateAnswer     = "duplicate_answer"
	CodeSingleChoiceCount   = "single_choice_requires_one"
	CodeExceedsMaxSelection = "exceeds_max_selections"
)

// CheckSelections validates a submitted answer-id list against the election's
// answer set and voting type. Pure predicate, no side effects.
func CheckSelections(e Election, answerIDs []string) error {
	if len(answerIDs) == 0 {
		return Invalid(CodeEmptySelection, "at least one answer must be selected")
	}
	seen := make(map[string]struct{}, len(answerIDs))
	for _, id := range answerIDs {
		if _, dup := seen[id]; dup {
			return Invalid(CodeDuplicateAnswer, fmt.Sprintf("answer %s selected more than once", id))
		}
		seen[id] = struct{}{}
		if !e.HasAnswer(id) {
			return Invalid(CodeUnknownAnswer, fmt.Sprintf("answer %s does not exist", id))
		}
	}
	switch e.VotingType {
	case SingleChoice:
		if len(answerIDs) != 1 {
			return Invalid(CodeSingleChoiceCount, "exactly one answer must be selected")
		}
	case MultiChoice:
		if len(answerIDs) > e.MaxSelections {
			return Invalid(CodeExceedsMaxSelection,
				fmt.Sprintf("at most %d answers may be selected", e.MaxSelections))
		}
	default:
		return Invalid("unknown_voting_type", "election has an unsupported voting type")
	}
	return nil
}
