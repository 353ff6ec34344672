package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/interfaces"
	"github.com/ternarybob/hunt/internal/models"
)

// MatchStorage implements interfaces.MatchStorage. Upserts key on
// (candidate_id, job_id); the newer score overwrites, usage timestamps are
// never touched by a re-match.
type MatchStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewMatchStorage creates a new match storage instance
func NewMatchStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.MatchStorage {
	return &MatchStorage{db: db, logger: logger}
}

const matchColumns = `id, candidate_id, job_id, score, hard_match, match_reasons,
	shown_at, clicked_at, applied_at, dismissed_at, created_at, updated_at`

// UpsertMatch inserts or rescores a (candidate, job) pair
func (m *MatchStorage) UpsertMatch(ctx context.Context, match *models.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if match.CreatedAt.IsZero() {
		match.CreatedAt = now
	}
	match.UpdatedAt = now

	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(candidate_id, job_id) DO UPDATE SET
			score = excluded.score,
			hard_match = excluded.hard_match,
			match_reasons = excluded.match_reasons,
			updated_at = excluded.updated_at
	`
	_, err := m.db.db.ExecContext(ctx, query,
		match.ID,
		match.CandidateID,
		match.JobID,
		match.Score,
		match.HardMatch,
		marshalJSON(match.Reasons),
		unixOrNil(match.ShownAt),
		unixOrNil(match.ClickedAt),
		unixOrNil(match.AppliedAt),
		unixOrNil(match.DismissedAt),
		match.CreatedAt.Unix(),
		match.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert match: %w", err)
	}
	return nil
}

// GetMatch retrieves one (candidate, job) pair, nil when absent
func (m *MatchStorage) GetMatch(ctx context.Context, candidateID, jobID string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE candidate_id = ? AND job_id = ?`
	match, err := scanMatch(m.db.db.QueryRowContext(ctx, query, candidateID, jobID).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return match, err
}

// ListMatchesForCandidate returns a candidate's matches, best score first
func (m *MatchStorage) ListMatchesForCandidate(ctx context.Context, candidateID string, limit int) ([]*models.Match, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + matchColumns + ` FROM matches WHERE candidate_id = ? ORDER BY score DESC LIMIT ?`
	rows, err := m.db.db.QueryContext(ctx, query, candidateID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows.Scan)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

// RecordShown stamps the pair's shown time (first exposure wins)
func (m *MatchStorage) RecordShown(ctx context.Context, candidateID, jobID string) error {
	return m.stamp(ctx, "shown_at", candidateID, jobID, true)
}

// RecordClicked stamps the pair's clicked time
func (m *MatchStorage) RecordClicked(ctx context.Context, candidateID, jobID string) error {
	return m.stamp(ctx, "clicked_at", candidateID, jobID, false)
}

// RecordApplied stamps the pair's applied time
func (m *MatchStorage) RecordApplied(ctx context.Context, candidateID, jobID string) error {
	return m.stamp(ctx, "applied_at", candidateID, jobID, false)
}

// RecordDismissed stamps the pair's dismissed time
func (m *MatchStorage) RecordDismissed(ctx context.Context, candidateID, jobID string) error {
	return m.stamp(ctx, "dismissed_at", candidateID, jobID, false)
}

// stamp writes one usage timestamp. onlyIfNull preserves the first value for
// first-exposure semantics.
func (m *MatchStorage) stamp(ctx context.Context, column, candidateID, jobID string, onlyIfNull bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().Unix()
	query := fmt.Sprintf(`UPDATE matches SET %s = ?, updated_at = ? WHERE candidate_id = ? AND job_id = ?`, column)
	if onlyIfNull {
		query += fmt.Sprintf(` AND %s IS NULL`, column)
	}

	result, err := m.db.db.ExecContext(ctx, query, now, now, candidateID, jobID)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", column, err)
	}
	if !onlyIfNull {
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return models.NewError(models.KindNotFound, "match not found")
		}
	}
	return nil
}

func scanMatch(scan func(...interface{}) error) (*models.Match, error) {
	var match models.Match
	var reasons string
	var shown, clicked, applied, dismissed sql.NullInt64
	var createdAt, updatedAt int64

	err := scan(
		&match.ID,
		&match.CandidateID,
		&match.JobID,
		&match.Score,
		&match.HardMatch,
		&reasons,
		&shown,
		&clicked,
		&applied,
		&dismissed,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(reasons), &match.Reasons); err != nil {
		match.Reasons = models.MatchReasons{}
	}
	match.ShownAt = timeFromNull(shown)
	match.ClickedAt = timeFromNull(clicked)
	match.AppliedAt = timeFromNull(applied)
	match.DismissedAt = timeFromNull(dismissed)
	match.CreatedAt = time.Unix(createdAt, 0)
	match.UpdatedAt = time.Unix(updatedAt, 0)
	return &match, nil
}
