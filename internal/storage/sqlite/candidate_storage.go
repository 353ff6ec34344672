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

// CandidateStorage implements interfaces.CandidateStorage
type CandidateStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewCandidateStorage creates a new candidate storage instance
func NewCandidateStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.CandidateStorage {
	return &CandidateStorage{db: db, logger: logger}
}

const candidateColumns = `id, email, name, role_families, seniority, min_salary, locations,
	location_types, role_types, skills, exclusions, embedding, last_matched_at,
	last_notified_at, is_active, created_at, updated_at`

// SaveCandidate upserts a candidate on the unique email
func (c *CandidateStorage) SaveCandidate(ctx context.Context, candidate *models.CandidateProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now

	query := `
		INSERT INTO candidate_profiles (` + candidateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			role_families = excluded.role_families,
			seniority = excluded.seniority,
			min_salary = excluded.min_salary,
			locations = excluded.locations,
			location_types = excluded.location_types,
			role_types = excluded.role_types,
			skills = excluded.skills,
			exclusions = excluded.exclusions,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`
	_, err := c.db.db.ExecContext(ctx, query,
		candidate.ID,
		candidate.Email,
		candidate.Name,
		marshalJSON(candidate.RoleFamilies),
		string(candidate.Seniority),
		floatOrNil(candidate.MinSalary),
		marshalJSON(candidate.Locations),
		marshalJSON(candidate.LocationTypes),
		marshalJSON(candidate.RoleTypes),
		marshalJSON(candidate.Skills),
		marshalJSON(candidate.Exclusions),
		encodeEmbedding(candidate.Embedding),
		unixOrNil(candidate.LastMatchedAt),
		unixOrNil(candidate.LastNotifiedAt),
		candidate.IsActive,
		candidate.CreatedAt.Unix(),
		candidate.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save candidate: %w", err)
	}
	return nil
}

// UpdateCandidate rewrites the preference fields of an existing candidate.
// The embedding column is written from candidate.Embedding as given; the
// candidate handler clears it when embedding inputs change so the embeddings
// stage regenerates it.
func (c *CandidateStorage) UpdateCandidate(ctx context.Context, candidate *models.CandidateProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidate.UpdatedAt = time.Now()

	query := `
		UPDATE candidate_profiles SET
			name = ?, role_families = ?, seniority = ?, min_salary = ?, locations = ?,
			location_types = ?, role_types = ?, skills = ?, exclusions = ?, embedding = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := c.db.db.ExecContext(ctx, query,
		candidate.Name,
		marshalJSON(candidate.RoleFamilies),
		string(candidate.Seniority),
		floatOrNil(candidate.MinSalary),
		marshalJSON(candidate.Locations),
		marshalJSON(candidate.LocationTypes),
		marshalJSON(candidate.RoleTypes),
		marshalJSON(candidate.Skills),
		marshalJSON(candidate.Exclusions),
		encodeEmbedding(candidate.Embedding),
		candidate.IsActive,
		candidate.UpdatedAt.Unix(),
		candidate.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.NewError(models.KindNotFound, fmt.Sprintf("candidate %s not found", candidate.ID))
	}
	return nil
}

// GetCandidate retrieves one candidate by id, nil when absent
func (c *CandidateStorage) GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidate_profiles WHERE id = ?`
	candidate, err := scanCandidate(c.db.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return candidate, err
}

// GetCandidateByEmail retrieves one candidate by unique email, nil when absent
func (c *CandidateStorage) GetCandidateByEmail(ctx context.Context, email string) (*models.CandidateProfile, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidate_profiles WHERE email = ?`
	candidate, err := scanCandidate(c.db.db.QueryRowContext(ctx, query, email).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return candidate, err
}

// ListActiveCandidates lists all active candidates
func (c *CandidateStorage) ListActiveCandidates(ctx context.Context) ([]*models.CandidateProfile, error) {
	rows, err := c.db.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidate_profiles WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*models.CandidateProfile
	for rows.Next() {
		candidate, err := scanCandidate(rows.Scan)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, rows.Err()
}

// SetCandidateEmbedding writes a candidate's vector
func (c *CandidateStorage) SetCandidateEmbedding(ctx context.Context, id string, embedding []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.db.ExecContext(ctx,
		`UPDATE candidate_profiles SET embedding = ?, updated_at = ? WHERE id = ?`,
		encodeEmbedding(embedding), time.Now().Unix(), id)
	return err
}

// MarkMatched stamps a candidate's last matching time
func (c *CandidateStorage) MarkMatched(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().Unix()
	_, err := c.db.db.ExecContext(ctx,
		`UPDATE candidate_profiles SET last_matched_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id)
	return err
}

func scanCandidate(scan func(...interface{}) error) (*models.CandidateProfile, error) {
	var candidate models.CandidateProfile
	var roleFamilies, seniority, locations, locationTypes, roleTypes, skills, exclusions string
	var minSalary sql.NullFloat64
	var embedding []byte
	var lastMatched, lastNotified sql.NullInt64
	var createdAt, updatedAt int64

	err := scan(
		&candidate.ID,
		&candidate.Email,
		&candidate.Name,
		&roleFamilies,
		&seniority,
		&minSalary,
		&locations,
		&locationTypes,
		&roleTypes,
		&skills,
		&exclusions,
		&embedding,
		&lastMatched,
		&lastNotified,
		&candidate.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(roleFamilies), &candidate.RoleFamilies); err != nil {
		candidate.RoleFamilies = nil
	}
	if err := json.Unmarshal([]byte(locationTypes), &candidate.LocationTypes); err != nil {
		candidate.LocationTypes = nil
	}
	candidate.Seniority = models.Seniority(seniority)
	candidate.MinSalary = floatFromNull(minSalary)
	candidate.Locations = unmarshalStrings(locations)
	candidate.RoleTypes = unmarshalStrings(roleTypes)
	candidate.Skills = unmarshalStrings(skills)
	candidate.Exclusions = unmarshalStrings(exclusions)
	candidate.Embedding = decodeEmbedding(embedding)
	candidate.LastMatchedAt = timeFromNull(lastMatched)
	candidate.LastNotifiedAt = timeFromNull(lastNotified)
	candidate.CreatedAt = time.Unix(createdAt, 0)
	candidate.UpdatedAt = time.Unix(updatedAt, 0)
	return &candidate, nil
}
