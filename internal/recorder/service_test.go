package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ballotbox.org/internal/election"
	"ballotbox.org/internal/identity"
	"ballotbox.org/internal/rbac"
)

func memberCtx() context.Context {
	return identity.ContextWithIdentity(context.Background(),
		identity.Identity{Subject: "member-1", Roles: []identity.Role{identity.RoleMember}})
}

func managerCtx() context.Context {
	return identity.ContextWithIdentity(context.Background(),
		identity.Identity{Subject: "admin-1", Roles: []identity.Role{identity.RoleElectionManager}})
}

func superCtx() context.Context {
	return identity.ContextWithIdentity(context.Background(),
		identity.Identity{Subject: "root-1", Roles: []identity.Role{identity.RoleSuperadmin}})
}

func strp(s string) *string { return &s }

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewInMemory(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func createPublished(t *testing.T, svc *Service) election.Election {
	t.Helper()
	e, err := svc.CreateElection(managerCtx(), election.DraftUpdate{
		Title:    strp("Board election"),
		Question: strp("Who should chair the board?"),
		Answers: []election.AnswerInput{
			{Text: "Candidate A"},
			{Text: "Candidate B"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	e, err = svc.Publish(managerCtx(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestMemberCatalogHidesDraftsAndHidden(t *testing.T) {
	svc := newTestService(t)
	published := createPublished(t, svc)

	draft, err := svc.CreateElection(managerCtx(), election.DraftUpdate{Title: strp("Draft only")})
	if err != nil {
		t.Fatal(err)
	}
	hidden := createPublished(t, svc)
	if _, err := svc.Hide(managerCtx(), hidden.ID); err != nil {
		t.Fatal(err)
	}

	visible, err := svc.VisibleElections(memberCtx())
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].ID != published.ID {
		t.Fatalf("unexpected catalog: %#v", visible)
	}

	// Invisible elections 404 rather than 403: existence is not disclosed.
	if _, err := svc.VisibleElection(memberCtx(), draft.ID); !errors.Is(err, election.ErrNotFound) {
		t.Fatalf("draft fetch: expected not found, got %v", err)
	}
	if _, err := svc.VisibleElection(memberCtx(), hidden.ID); !errors.Is(err, election.ErrNotFound) {
		t.Fatalf("hidden fetch: expected not found, got %v", err)
	}
}

func TestSubmitBallotFlow(t *testing.T) {
	svc := newTestService(t)
	e := createPublished(t, svc)

	if err := svc.RegisterCredential(context.Background(), "tok-1", e.ID); err != nil {
		t.Fatal(err)
	}

	b, err := svc.SubmitBallot(memberCtx(), "tok-1", e.ID, []string{e.Answers[0].ID})
	if err != nil {
		t.Fatal(err)
	}
	if b.ElectionID != e.ID || len(b.AnswerIDs) != 1 {
		t.Fatalf("unexpected ballot: %#v", b)
	}

	// Same credential again is a conflict, not a second ballot.
	_, err = svc.SubmitBallot(memberCtx(), "tok-1", e.ID, []string{e.Answers[1].ID})
	if !errors.Is(err, election.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	cred, err := svc.CredentialStatus(memberCtx(), "tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if !cred.Consumed() {
		t.Fatal("credential should be consumed")
	}
}

func TestSubmitBallotRequiresAuthentication(t *testing.T) {
	svc := newTestService(t)
	e := createPublished(t, svc)
	_ = svc.RegisterCredential(context.Background(), "tok-1", e.ID)

	_, err := svc.SubmitBallot(context.Background(), "tok-1", e.ID, []string{e.Answers[0].ID})
	if !errors.Is(err, identity.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestSubmitBallotWrongElection(t *testing.T) {
	svc := newTestService(t)
	e1 := createPublished(t, svc)
	e2 := createPublished(t, svc)
	_ = svc.RegisterCredential(context.Background(), "tok-1", e1.ID)

	_, err := svc.SubmitBallot(memberCtx(), "tok-1", e2.ID, []string{e2.Answers[0].ID})
	if !errors.Is(err, election.ErrValidation) || election.CodeOf(err) != "credential_mismatch" {
		t.Fatalf("expected credential_mismatch, got %v", err)
	}
}

func TestSubmitBallotPausedElection(t *testing.T) {
	svc := newTestService(t)
	e := createPublished(t, svc)
	_ = svc.RegisterCredential(context.Background(), "tok-1", e.ID)
	if _, err := svc.Pause(managerCtx(), e.ID); err != nil {
		t.Fatal(err)
	}

	_, err := svc.SubmitBallot(memberCtx(), "tok-1", e.ID, []string{e.Answers[0].ID})
	if !errors.Is(err, election.ErrState) || election.CodeOf(err) != election.CodeElectionPaused {
		t.Fatalf("expected election_paused, got %v", err)
	}

	// A rejected submission must not burn the credential.
	cred, err := svc.CredentialStatus(memberCtx(), "tok-1")
	if err != nil {
		t.Fatal(err)
	}
	if cred.Consumed() {
		t.Fatal("credential consumed by a rejected submission")
	}

	if _, err := svc.Resume(managerCtx(), e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SubmitBallot(memberCtx(), "tok-1", e.ID, []string{e.Answers[0].ID}); err != nil {
		t.Fatalf("submission after resume: %v", err)
	}
}

func TestConcurrentSubmissionsConsumeOnce(t *testing.T) {
	svc := newTestService(t)
	e := createPublished(t, svc)
	_ = svc.RegisterCredential(context.Background(), "tok-race", e.ID)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes, conflicts int
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.SubmitBallot(memberCtx(), "tok-race", e.ID, []string{e.Answers[i%2].ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, election.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 || conflicts != 31 {
		t.Fatalf("expected exactly one success, got %d successes %d conflicts", successes, conflicts)
	}

	counts, err := svc.S2SResults(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, c := range counts {
		total += c.Count
	}
	if total != 1 {
		t.Fatalf("expected one recorded selection, got %d", total)
	}
}

func TestRegisterCredentialIdempotent(t *testing.T) {
	svc := newTestService(t)
	e := createPublished(t, svc)

	if err := svc.RegisterCredential(context.Background(), "tok-1", e.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.RegisterCredential(context.Background(), "tok-1", e.ID); err != nil {
		t.Fatalf("same pair should be idempotent, got %v", err)
	}

	e2 := createPublished(t, svc)
	err := svc.RegisterCredential(context.Background(), "tok-1", e2.ID)
	if !errors.Is(err, election.ErrConflict) {
		t.Fatalf("expected conflict for reused token, got %v", err)
	}

	if err := svc.RegisterCredential(context.Background(), "", e.ID); !errors.Is(err, election.ErrValidation) {
		t.Fatalf("expected validation error for empty token, got %v", err)
	}
}

func TestAdminSurfaceRequiresManager(t *testing.T) {
	svc := newTestService(t)
	e := createPublished(t, svc)

	if _, err := svc.AdminListElections(memberCtx(), false); !errors.Is(err, rbac.ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
	if _, err := svc.Publish(memberCtx(), e.ID); !errors.Is(err, rbac.ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
	if _, err := svc.CreateElection(memberCtx(), election.DraftUpdate{Title: strp("x")}); !errors.Is(err, rbac.ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
}

func TestAdminListIncludeHidden(t *testing.T) {
	svc := newTestService(t)
	visible := createPublished(t, svc)
	hidden := createPublished(t, svc)
	if _, err := svc.Hide(managerCtx(), hidden.ID); err != nil {
		t.Fatal(err)
	}

	list, err := svc.AdminListElections(managerCtx(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != visible.ID {
		t.Fatalf("unexpected default listing: %#v", list)
	}

	list, err = svc.AdminListElections(managerCtx(), true)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected both elections with include_hidden, got %d", len(list))
	}
}

func TestHardDeleteIsSuperadminOnly(t *testing.T) {
	svc := newTestService(t)
	e := createPublished(t, svc)

	if err := svc.HardDelete(managerCtx(), e.ID); !errors.Is(err, rbac.ErrAuthorization) {
		t.Fatalf("manager must not hard delete, got %v", err)
	}
	if err := svc.HardDelete(superCtx(), e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AdminGetElection(managerCtx(), e.ID); !errors.Is(err, election.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestHardDeleteCascades(t *testing.T) {
	store := NewInMemory()
	svc, err := NewService(store, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := createPublished(t, svc)
	if err := svc.RegisterCredential(context.Background(), "tok-1", e.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SubmitBallot(memberCtx(), "tok-1", e.ID, []string{e.Answers[0].ID}); err != nil {
		t.Fatal(err)
	}

	if err := svc.HardDelete(superCtx(), e.ID); err != nil {
		t.Fatal(err)
	}
	// Credentials and ballots go with the election, as in the SQL schema.
	if _, err := store.GetCredential(context.Background(), "tok-1"); !errors.Is(err, election.ErrNotFound) {
		t.Fatalf("expected credential gone after delete, got %v", err)
	}
	if len(store.ballots) != 0 {
		t.Fatalf("expected ballots gone after delete, got %d", len(store.ballots))
	}
}

func TestResultsGating(t *testing.T) {
	svc := newTestService(t)
	e := createPublished(t, svc)
	_ = svc.RegisterCredential(context.Background(), "tok-1", e.ID)
	if _, err := svc.SubmitBallot(memberCtx(), "tok-1", e.ID, []string{e.Answers[0].ID}); err != nil {
		t.Fatal(err)
	}

	// Admin results are gated until the election is closed.
	if _, err := svc.AdminResults(managerCtx(), e.ID); !errors.Is(err, election.ErrState) {
		t.Fatalf("expected state error before close, got %v", err)
	}
	if _, err := svc.Close(managerCtx(), e.ID); err != nil {
		t.Fatal(err)
	}
	counts, err := svc.AdminResults(managerCtx(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 || counts[0].Count != 1 || counts[1].Count != 0 {
		t.Fatalf("unexpected results: %#v", counts)
	}
}

func TestS2SResultsHideDrafts(t *testing.T) {
	svc := newTestService(t)
	draft, err := svc.CreateElection(managerCtx(), election.DraftUpdate{Title: strp("Draft")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.S2SResults(context.Background(), draft.ID); !errors.Is(err, election.ErrState) {
		t.Fatalf("expected state error for draft results, got %v", err)
	}
}

func TestUpdateOnlyInDraft(t *testing.T) {
	svc := newTestService(t)
	e := createPublished(t, svc)
	_, err := svc.UpdateElection(managerCtx(), e.ID, election.DraftUpdate{Title: strp("late")})
	if !errors.Is(err, election.ErrState) {
		t.Fatalf("expected state error, got %v", err)
	}
}

func TestStoreOptimisticConcurrency(t *testing.T) {
	store := NewInMemory()
	now := time.Now()
	e := election.NewDraft("admin-1", now)
	if err := store.InsertElection(context.Background(), e); err != nil {
		t.Fatal(err)
	}

	stale := e
	stale.Status = election.StatusPublished
	// Expect draft, but pretend another writer already moved it on.
	if err := store.UpdateElection(context.Background(), stale, election.StatusPublished); !errors.Is(err, election.ErrConflict) {
		t.Fatalf("expected conflict on status mismatch, got %v", err)
	}
}
