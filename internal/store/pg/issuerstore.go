package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ballotbox.org/internal/election"
	"ballotbox.org/internal/issuer"
)

// IssuerStore implements issuer.Store. It persists one fact per issuance:
// (subject, election). Nothing else about the credential survives here.
type IssuerStore struct {
	db *sql.DB
}

var _ issuer.Store = (*IssuerStore)(nil)

// OpenIssuer connects to the issuer's Postgres database.
func OpenIssuer(dsn string) (*IssuerStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	return &IssuerStore{db: db}, nil
}

// NewIssuerStore wraps an existing connection pool (used by tests).
func NewIssuerStore(db *sql.DB) *IssuerStore { return &IssuerStore{db: db} }

func (s *IssuerStore) Close() error { return s.db.Close() }

func (s *IssuerStore) DB() *sql.DB { return s.db }

func (s *IssuerStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Issue inserts the issuance record and runs register inside the same local
// transaction: if registration with the recorder fails, the insert rolls back
// and the subject can retry; the member never receives a token whose
// registration did not commit. The primary key on (subject_id, election_id)
// resolves concurrent issuance races.
func (s *IssuerStore) Issue(ctx context.Context, subjectID, electionID string, register func(context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		insert into issued_credentials(subject_id, election_id, issued_at)
		values ($1,$2,$3)
		on conflict (subject_id, election_id) do nothing
	`, subjectID, electionID, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return election.Conflict("already_issued", "a credential was already issued for this election")
	}

	if err := register(ctx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *IssuerStore) HasIssued(ctx context.Context, subjectID, electionID string) (bool, error) {
	var issued bool
	err := s.db.QueryRowContext(ctx, `
		select true from issued_credentials where subject_id=$1 and election_id=$2
	`, subjectID, electionID).Scan(&issued)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return issued, nil
}
