// Package pg implements the recorder and issuer stores on Postgres. The
// credential consumption path relies on a conditional update inside a
// serializable transaction rather than read-then-write application logic, so
// racing submissions of the same token resolve to exactly one winner.
package pg

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ballotbox.org/internal/election"
	"ballotbox.org/internal/ids"
	"ballotbox.org/internal/recorder"
)

// Store implements recorder.Store.
type Store struct {
	db *sql.DB
}

var _ recorder.Store = (*Store)(nil)

// Open connects to Postgres with pool defaults tuned for the recorder.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// hashToken is the at-rest form of a credential token. The bare token exists
// only in flight and in the member's hands.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Store) InsertElection(ctx context.Context, e election.Election) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into elections(
			id, title, question, description, voting_type, max_selections,
			eligibility, status, hidden, scheduled_start, scheduled_end,
			created_by, updated_by, created_at, updated_at, opened_at, closed_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, e.ID, e.Title, e.Question, e.Description, string(e.VotingType), e.MaxSelections,
		string(e.Eligibility), string(e.Status), e.Hidden, e.ScheduledStart, e.ScheduledEnd,
		e.CreatedBy, e.UpdatedBy, e.CreatedAt, e.UpdatedAt, e.OpenedAt, e.ClosedAt); err != nil {
		return err
	}
	if err := insertAnswers(ctx, tx, e.ID, e.Answers); err != nil {
		return err
	}
	return tx.Commit()
}

func insertAnswers(ctx context.Context, tx *sql.Tx, electionID string, answers []election.Answer) error {
	for i, a := range answers {
		if _, err := tx.ExecContext(ctx, `
			insert into election_answers(election_id, answer_id, answer_text, position)
			values ($1,$2,$3,$4)
		`, electionID, a.ID, a.Text, i); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetElection(ctx context.Context, id string) (election.Election, error) {
	return loadElection(ctx, s.db, id, false)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadElection(ctx context.Context, q querier, id string, forUpdate bool) (election.Election, error) {
	query := `
		select id, title, question, description, voting_type, max_selections,
		       eligibility, status, hidden, scheduled_start, scheduled_end,
		       created_by, updated_by, created_at, updated_at, opened_at, closed_at
		from elections where id=$1`
	if forUpdate {
		query += " for update"
	}
	var e election.Election
	var votingType, eligibility, status string
	err := q.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Title, &e.Question, &e.Description, &votingType, &e.MaxSelections,
		&eligibility, &status, &e.Hidden, &e.ScheduledStart, &e.ScheduledEnd,
		&e.CreatedBy, &e.UpdatedBy, &e.CreatedAt, &e.UpdatedAt, &e.OpenedAt, &e.ClosedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return election.Election{}, election.Missing("election_not_found", "election not found")
	}
	if err != nil {
		return election.Election{}, err
	}
	e.VotingType = election.VotingType(votingType)
	e.Eligibility = election.Eligibility(eligibility)
	e.Status = election.Status(status)

	rows, err := q.QueryContext(ctx, `
		select answer_id, answer_text from election_answers
		where election_id=$1 order by position
	`, id)
	if err != nil {
		return election.Election{}, err
	}
	defer rows.Close()
	e.Answers = []election.Answer{}
	for rows.Next() {
		var a election.Answer
		if err := rows.Scan(&a.ID, &a.Text); err != nil {
			return election.Election{}, err
		}
		e.Answers = append(e.Answers, a)
	}
	return e, rows.Err()
}

func (s *Store) ListElections(ctx context.Context) ([]election.Election, error) {
	rows, err := s.db.QueryContext(ctx, `select id from elections order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var idsList []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		idsList = append(idsList, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]election.Election, 0, len(idsList))
	for _, id := range idsList {
		e, err := loadElection(ctx, s.db, id, false)
		if err != nil {
			if errors.Is(err, election.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) UpdateElection(ctx context.Context, e election.Election, expect election.Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update elections set
			title=$2, question=$3, description=$4, voting_type=$5, max_selections=$6,
			eligibility=$7, status=$8, hidden=$9, scheduled_start=$10, scheduled_end=$11,
			updated_by=$12, updated_at=$13, opened_at=$14, closed_at=$15
		where id=$1 and status=$16
	`, e.ID, e.Title, e.Question, e.Description, string(e.VotingType), e.MaxSelections,
		string(e.Eligibility), string(e.Status), e.Hidden, e.ScheduledStart, e.ScheduledEnd,
		e.UpdatedBy, e.UpdatedAt, e.OpenedAt, e.ClosedAt, string(expect))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `select true from elections where id=$1`, e.ID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return election.Missing("election_not_found", "election not found")
			}
			return err
		}
		return election.Conflict("state_changed", "election was modified concurrently")
	}

	if _, err := tx.ExecContext(ctx, `delete from election_answers where election_id=$1`, e.ID); err != nil {
		return err
	}
	if err := insertAnswers(ctx, tx, e.ID, e.Answers); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteElection(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from elections where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return election.Missing("election_not_found", "election not found")
	}
	return nil
}

func (s *Store) RegisterCredential(ctx context.Context, token, electionID string, now time.Time) error {
	hash := hashToken(token)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `select true from elections where id=$1`, electionID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return election.Missing("election_not_found", "election not found")
		}
		return err
	}

	res, err := tx.ExecContext(ctx, `
		insert into credentials(token_hash, election_id, issued_at)
		values ($1,$2,$3)
		on conflict (token_hash) do nothing
	`, hash, electionID, now.UTC())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Idempotent replay for the same election; conflict for another.
		var registered string
		if err := tx.QueryRowContext(ctx, `select election_id from credentials where token_hash=$1`, hash).Scan(&registered); err != nil {
			return err
		}
		if registered != electionID {
			return election.Conflict("credential_mismatch", "token already registered for another election")
		}
	}
	return tx.Commit()
}

func (s *Store) GetCredential(ctx context.Context, token string) (recorder.Credential, error) {
	var c recorder.Credential
	err := s.db.QueryRowContext(ctx, `
		select election_id, issued_at, consumed_at from credentials where token_hash=$1
	`, hashToken(token)).Scan(&c.ElectionID, &c.IssuedAt, &c.ConsumedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return recorder.Credential{}, election.Missing("credential_not_found", "credential not found")
	}
	if err != nil {
		return recorder.Credential{}, err
	}
	return c, nil
}

func (s *Store) ConsumeAndRecord(ctx context.Context, token, electionID string, answerIDs []string, now time.Time) (recorder.Ballot, error) {
	hash := hashToken(token)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return recorder.Ballot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the credential row first; racing submissions of the same token
	// queue up here and all but one find it consumed.
	var credElection string
	var consumedAt sql.NullTime
	err = tx.QueryRowContext(ctx, `
		select election_id, consumed_at from credentials where token_hash=$1 for update
	`, hash).Scan(&credElection, &consumedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return recorder.Ballot{}, election.Missing("credential_not_found", "credential not found")
	}
	if err != nil {
		return recorder.Ballot{}, err
	}
	if credElection != electionID {
		return recorder.Ballot{}, election.Invalid("credential_mismatch", "credential was issued for a different election")
	}
	if consumedAt.Valid {
		return recorder.Ballot{}, election.Conflict("already_voted", "this credential has already been used to vote")
	}

	// The window check must see the election state inside this transaction,
	// not a cached listing: an administrator may have closed the election a
	// moment ago.
	e, err := loadElection(ctx, tx, electionID, true)
	if err != nil {
		return recorder.Ballot{}, err
	}
	if err := election.CheckWindow(e, now); err != nil {
		return recorder.Ballot{}, err
	}
	if err := election.CheckSelections(e, answerIDs); err != nil {
		return recorder.Ballot{}, err
	}

	ts := now.UTC()
	res, err := tx.ExecContext(ctx, `
		update credentials set consumed_at=$2 where token_hash=$1 and consumed_at is null
	`, hash, ts)
	if err != nil {
		return recorder.Ballot{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return recorder.Ballot{}, err
	}
	if affected == 0 {
		return recorder.Ballot{}, election.Conflict("already_voted", "this credential has already been used to vote")
	}

	ballotID := ids.New()
	if _, err := tx.ExecContext(ctx, `
		insert into ballots(id, token_hash, election_id, recorded_at) values ($1,$2,$3,$4)
	`, ballotID, hash, electionID, ts); err != nil {
		return recorder.Ballot{}, err
	}
	for _, answerID := range answerIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into ballot_answers(ballot_id, answer_id) values ($1,$2)
		`, ballotID, answerID); err != nil {
			return recorder.Ballot{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return recorder.Ballot{}, err
	}
	return recorder.Ballot{
		ID:           ballotID,
		CredentialID: hash,
		ElectionID:   electionID,
		AnswerIDs:    append([]string(nil), answerIDs...),
		RecordedAt:   ts,
	}, nil
}

func (s *Store) Results(ctx context.Context, electionID string) ([]recorder.AnswerCount, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `select true from elections where id=$1`, electionID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, election.Missing("election_not_found", "election not found")
		}
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select a.answer_id, a.answer_text,
		       (select count(*) from ballot_answers ba
		          join ballots b on b.id = ba.ballot_id
		         where b.election_id = a.election_id and ba.answer_id = a.answer_id)
		from election_answers a
		where a.election_id=$1
		order by a.position
	`, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []recorder.AnswerCount{}
	for rows.Next() {
		var c recorder.AnswerCount
		if err := rows.Scan(&c.AnswerID, &c.Text, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
