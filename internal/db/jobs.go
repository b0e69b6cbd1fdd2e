package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ALT-F4-LLC/jmigrate/internal/model"
)

// ErrNotFound is returned when a requested job does not exist or has expired.
var ErrNotFound = errors.New("not found")

// scanner abstracts *sql.Row and *sql.Rows for scanning a single row.
type scanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

const jobColumns = `id, kind, status, progress, archive, files, permanent, temporary,
	output, cleanup, error, created_at, updated_at, expires_at`

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// InsertJob stores a new job. The caller sets every field, including the
// timestamps.
func InsertJob(db *sql.DB, j model.Job) error {
	_, err := db.Exec(
		`INSERT INTO jobs (`+jobColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID,
		string(j.Kind),
		string(j.Status),
		j.Progress,
		j.Archive,
		string(j.Files),
		j.Permanent,
		j.Temporary,
		j.Output,
		j.Cleanup,
		j.Error,
		formatTime(j.CreatedAt),
		formatTime(j.UpdatedAt),
		formatTime(j.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

// GetJob retrieves a live job and its messages. Jobs whose expires_at is not
// after now are reported as ErrNotFound.
func GetJob(db *sql.DB, id string, now time.Time) (*model.Job, error) {
	return getJob(db, id, now)
}

func getJob(q execer, id string, now time.Time) (*model.Job, error) {
	row := q.QueryRow(
		`SELECT `+jobColumns+` FROM jobs WHERE id = ? AND expires_at > ?`,
		id, formatTime(now),
	)
	j, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	if j.Messages, err = listMessages(q, id); err != nil {
		return nil, err
	}
	return j, nil
}

// UpdateJob rewrites the mutable fields of a live job inside a transaction.
// fn receives the current job and returns the job to store; returning an
// error aborts the update.
func UpdateJob(db *sql.DB, id string, now time.Time, fn func(model.Job) (model.Job, error)) (*model.Job, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := getJob(tx, id, now)
	if err != nil {
		return nil, err
	}
	next, err := fn(*cur)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(
		`UPDATE jobs SET status = ?, progress = ?, archive = ?, files = ?, permanent = ?,
		 temporary = ?, output = ?, cleanup = ?, error = ?, updated_at = ?, expires_at = ?
		 WHERE id = ?`,
		string(next.Status),
		next.Progress,
		next.Archive,
		string(next.Files),
		next.Permanent,
		next.Temporary,
		next.Output,
		next.Cleanup,
		next.Error,
		formatTime(next.UpdatedAt),
		formatTime(next.ExpiresAt),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return &next, nil
}

// AddMessage appends a message to a live job and refreshes its expiry.
func AddMessage(db *sql.DB, id string, msg model.Message, expires time.Time) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE jobs SET updated_at = ?, expires_at = ? WHERE id = ? AND expires_at > ?`,
		formatTime(msg.Time), formatTime(expires), id, formatTime(msg.Time),
	)
	if err != nil {
		return fmt.Errorf("touching job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(
		`INSERT INTO job_messages (job_id, kind, text, created_at) VALUES (?, ?, ?, ?)`,
		id, string(msg.Kind), msg.Text, formatTime(msg.Time),
	); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	return tx.Commit()
}

// ClaimJob moves a live pending job to running. It reports false when the
// job exists but is no longer pending.
func ClaimJob(db *sql.DB, id string, now, expires time.Time) (bool, error) {
	res, err := db.Exec(
		`UPDATE jobs SET status = ?, updated_at = ?, expires_at = ?
		 WHERE id = ? AND status = ? AND expires_at > ?`,
		string(model.StatusRunning), formatTime(now), formatTime(expires),
		id, string(model.StatusPending), formatTime(now),
	)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	if _, err := GetJob(db, id, now); err != nil {
		return false, err
	}
	return false, nil
}

// ListJobs returns live jobs, newest first. Messages are not loaded.
func ListJobs(db *sql.DB, now time.Time) ([]*model.Job, error) {
	rows, err := db.Query(
		`SELECT `+jobColumns+` FROM jobs WHERE expires_at > ? ORDER BY created_at DESC, id`,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// DeleteJob removes a job and its messages.
func DeleteJob(db *sql.DB, id string) error {
	res, err := db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes every job whose expires_at is not after now and
// returns how many were removed.
func DeleteExpired(db *sql.DB, now time.Time) (int, error) {
	res, err := db.Exec(`DELETE FROM jobs WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(n), nil
}

func listMessages(q execer, id string) ([]model.Message, error) {
	rows, err := q.Query(
		`SELECT kind, text, created_at FROM job_messages WHERE job_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var kind, text, created string
		if err := rows.Scan(&kind, &text, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		t, err := time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("parsing message time: %w", err)
		}
		msgs = append(msgs, model.Message{Kind: model.MessageKind(kind), Text: text, Time: t})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

func scanJob(s scanner) (*model.Job, error) {
	var (
		j                           model.Job
		kind, status, files         string
		created, updated, expiresAt string
	)
	err := s.Scan(
		&j.ID, &kind, &status, &j.Progress, &j.Archive, &files, &j.Permanent, &j.Temporary,
		&j.Output, &j.Cleanup, &j.Error, &created, &updated, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	j.Kind = model.JobKind(kind)
	j.Status = model.Status(status)
	j.Files = model.FileSync(files)

	if j.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if j.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	return &j, nil
}
