package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"ballotbox.org/internal/election"
)

func TestIssueCommitsAfterRegistration(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	s := NewIssuerStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("insert into issued_credentials").
		WithArgs("m-1", "e1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	registered := false
	err = s.Issue(context.Background(), "m-1", "e1", func(ctx context.Context) error {
		registered = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !registered {
		t.Fatal("register callback not invoked")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestIssueConflictSkipsRegistration(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	s := NewIssuerStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("insert into issued_credentials").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = s.Issue(context.Background(), "m-1", "e1", func(ctx context.Context) error {
		t.Fatal("register must not run when issuance conflicts")
		return nil
	})
	if !errors.Is(err, election.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestIssueRollsBackOnRegistrationFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	s := NewIssuerStore(db)

	mock.ExpectBegin()
	mock.ExpectExec("insert into issued_credentials").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	boom := errors.New("recorder down")
	err = s.Issue(context.Background(), "m-1", "e1", func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected registration error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestHasIssued(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	s := NewIssuerStore(db)

	mock.ExpectQuery("select true from issued_credentials").
		WithArgs("m-1", "e1").
		WillReturnRows(sqlmock.NewRows([]string{"true"}).AddRow(true))
	mock.ExpectQuery("select true from issued_credentials").
		WithArgs("m-1", "e2").
		WillReturnRows(sqlmock.NewRows([]string{"true"}))

	has, err := s.HasIssued(context.Background(), "m-1", "e1")
	if err != nil || !has {
		t.Fatalf("expected issued, got %v %v", has, err)
	}
	has, err = s.HasIssued(context.Background(), "m-1", "e2")
	if err != nil || has {
		t.Fatalf("expected not issued, got %v %v", has, err)
	}
}
