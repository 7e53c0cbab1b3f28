package election

import (
	"errors"
	"testing"
	"time"
)

func str(s string) *string          { return &s }
func vt(v VotingType) *VotingType   { return &v }
func el(e Eligibility) *Eligibility { return &e }
func num(n int) *int                { return &n }
func ts(t time.Time) *time.Time     { return &t }

func draftWithAnswers(t *testing.T, n int) Election {
	t.Helper()
	now := time.Now()
	e := NewDraft("admin-1", now)
	answers := make([]AnswerInput, 0, n)
	for i := 0; i < n; i++ {
		answers = append(answers, AnswerInput{Text: "option " + string(rune('a'+i))})
	}
	upd := DraftUpdate{
		Title:    str("Board election"),
		Question: str("Who should chair the board?"),
		Answers:  answers,
	}
	if err := ApplyDraftUpdate(&e, upd, "admin-1", now); err != nil {
		t.Fatalf("build draft: %v", err)
	}
	return e
}

func TestDraftUpdateAssignsAnswerIDs(t *testing.T) {
	e := draftWithAnswers(t, 3)
	seen := map[string]struct{}{}
	for _, a := range e.Answers {
		if a.ID == "" {
			t.Fatal("answer without id")
		}
		if _, dup := seen[a.ID]; dup {
			t.Fatalf("duplicate answer id %s", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
}

func TestDraftUpdateKeepsExistingAnswerIDs(t *testing.T) {
	e := draftWithAnswers(t, 2)
	keep := e.Answers[0]

	upd := DraftUpdate{Answers: []AnswerInput{
		{ID: keep.ID, Text: "renamed"},
		{Text: "brand new"},
	}}
	if err := ApplyDraftUpdate(&e, upd, "admin-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if e.Answers[0].ID != keep.ID || e.Answers[0].Text != "renamed" {
		t.Fatalf("existing answer not preserved: %#v", e.Answers[0])
	}
	if e.Answers[1].ID == "" || e.Answers[1].ID == keep.ID {
		t.Fatalf("new answer got bad id %q", e.Answers[1].ID)
	}
}

func TestDraftUpdateRejectsUnknownAnswerID(t *testing.T) {
	e := draftWithAnswers(t, 2)
	upd := DraftUpdate{Answers: []AnswerInput{{ID: "nope", Text: "x"}}}
	err := ApplyDraftUpdate(&e, upd, "admin-1", time.Now())
	if !errors.Is(err, ErrValidation) || CodeOf(err) != CodeUnknownAnswer {
		t.Fatalf("expected unknown_answer validation error, got %v", err)
	}
}

func TestDraftUpdateValidation(t *testing.T) {
	cases := []struct {
		name string
		upd  DraftUpdate
		code string
	}{
		{"empty title", DraftUpdate{Title: str("  ")}, "title_required"},
		{"empty question", DraftUpdate{Question: str("")}, "question_required"},
		{"bad voting type", DraftUpdate{VotingType: vt("ranked")}, "unknown_voting_type"},
		{"bad eligibility", DraftUpdate{Eligibility: el("board")}, "unknown_eligibility"},
		{"max selections zero", DraftUpdate{MaxSelections: num(0)}, "max_selections_too_small"},
		{"max selections too large", DraftUpdate{MaxSelections: num(5)}, "max_selections_too_large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := draftWithAnswers(t, 2)
			err := ApplyDraftUpdate(&e, tc.upd, "admin-1", time.Now())
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if CodeOf(err) != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, CodeOf(err))
			}
		})
	}
}

func TestDraftUpdateRejectsInvertedWindow(t *testing.T) {
	e := draftWithAnswers(t, 2)
	start := time.Now().Add(2 * time.Hour)
	end := time.Now().Add(time.Hour)
	err := ApplyDraftUpdate(&e, DraftUpdate{ScheduledStart: ts(start), ScheduledEnd: ts(end)}, "admin-1", time.Now())
	if CodeOf(err) != "window_inverted" {
		t.Fatalf("expected window_inverted, got %v", err)
	}
}

func TestDraftUpdateZeroTimeClearsBound(t *testing.T) {
	e := draftWithAnswers(t, 2)
	start := time.Now().Add(time.Hour)
	if err := ApplyDraftUpdate(&e, DraftUpdate{ScheduledStart: ts(start)}, "admin-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if e.ScheduledStart == nil {
		t.Fatal("scheduled start not set")
	}
	if err := ApplyDraftUpdate(&e, DraftUpdate{ScheduledStart: ts(time.Time{})}, "admin-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if e.ScheduledStart != nil {
		t.Fatal("scheduled start not cleared")
	}
}

func TestEditAfterPublishIsStateError(t *testing.T) {
	e := draftWithAnswers(t, 2)
	if err := Publish(&e, "admin-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	err := ApplyDraftUpdate(&e, DraftUpdate{Title: str("late edit")}, "admin-1", time.Now())
	if !errors.Is(err, ErrState) || CodeOf(err) != CodeNotDraft {
		t.Fatalf("expected not_draft state error, got %v", err)
	}
}

func TestPublishRequiresAnswers(t *testing.T) {
	now := time.Now()
	e := NewDraft("admin-1", now)
	err := Publish(&e, "admin-1", now)
	if !errors.Is(err, ErrState) || CodeOf(err) != CodeNoAnswers {
		t.Fatalf("expected no_answers state error, got %v", err)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	e := draftWithAnswers(t, 2)
	now := time.Now()

	steps := []struct {
		apply func(*Election, string, time.Time) error
		want  Status
	}{
		{Publish, StatusPublished},
		{Pause, StatusPaused},
		{Resume, StatusPublished},
		{Close, StatusClosed},
		{Archive, StatusArchived},
	}
	for _, s := range steps {
		if err := s.apply(&e, "admin-1", now); err != nil {
			t.Fatalf("transition to %s: %v", s.want, err)
		}
		if e.Status != s.want {
			t.Fatalf("expected status %s, got %s", s.want, e.Status)
		}
	}
	if e.OpenedAt == nil || e.ClosedAt == nil {
		t.Fatal("opened_at/closed_at not stamped")
	}
}

func TestInvalidTransitions(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name  string
		from  Status
		apply func(*Election, string, time.Time) error
		code  string
	}{
		{"publish published", StatusPublished, Publish, CodeNotDraft},
		{"pause draft", StatusDraft, Pause, CodeNotPublished},
		{"pause closed", StatusClosed, Pause, CodeNotPublished},
		{"resume published", StatusPublished, Resume, CodeNotPaused},
		{"close draft", StatusDraft, Close, CodeNotClosable},
		{"close archived", StatusArchived, Close, CodeNotClosable},
		{"archive published", StatusPublished, Archive, CodeNotClosed},
		{"archive draft", StatusDraft, Archive, CodeNotClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := draftWithAnswers(t, 2)
			e.Status = tc.from
			err := tc.apply(&e, "admin-1", now)
			if !errors.Is(err, ErrState) {
				t.Fatalf("expected state error, got %v", err)
			}
			if CodeOf(err) != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, CodeOf(err))
			}
		})
	}
}

func TestSetHidden(t *testing.T) {
	e := draftWithAnswers(t, 2)
	if err := SetHidden(&e, true, "admin-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if !e.Hidden {
		t.Fatal("not hidden")
	}
	if err := SetHidden(&e, false, "admin-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	if e.Hidden {
		t.Fatal("still hidden")
	}

	e.Status = StatusArchived
	err := SetHidden(&e, true, "admin-1", time.Now())
	if !errors.Is(err, ErrState) || CodeOf(err) != CodeArchivedImmutable {
		t.Fatalf("expected archived_immutable, got %v", err)
	}
}
