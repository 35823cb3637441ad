package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nestscore/nest-score-go/internal/models"
	"github.com/nestscore/nest-score-go/internal/spatial"
)

// AnalysisRepository handles database operations for persisted analyses
type AnalysisRepository struct {
	db *sql.DB
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create inserts a new analysis record. Coordinates are normalized to the
// cache grid so nearby requests hit the same row.
func (r *AnalysisRepository) Create(record *models.AnalysisRecord) error {
	lat, lon := spatial.NormalizeCoords(record.Lat, record.Lon)
	record.Lat, record.Lon = lat, lon

	query := `
		INSERT INTO analyses (
			lat, lon, radius_m, profile_key, result_json, pois_json,
			quiet_score, base_score, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		record.Lat,
		record.Lon,
		record.RadiusM,
		record.ProfileKey,
		record.ResultJSON,
		record.POIsJSON,
		record.QuietScore,
		record.BaseScore,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByID retrieves an analysis record by ID
func (r *AnalysisRepository) GetByID(id int64) (*models.AnalysisRecord, error) {
	query := `
		SELECT id, lat, lon, radius_m, profile_key, result_json, pois_json,
			   quiet_score, base_score, created_at, expires_at
		FROM analyses
		WHERE id = ?
	`

	record := &models.AnalysisRecord{}
	err := r.db.QueryRow(query, id).Scan(
		&record.ID,
		&record.Lat,
		&record.Lon,
		&record.RadiusM,
		&record.ProfileKey,
		&record.ResultJSON,
		&record.POIsJSON,
		&record.QuietScore,
		&record.BaseScore,
		&record.CreatedAt,
		&record.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	return record, nil
}

// FindCached looks up the freshest unexpired analysis for normalized
// coordinates, radius and profile. Returns nil without error on a miss.
func (r *AnalysisRepository) FindCached(lat, lon float64, radiusM int, profileKey string) (*models.AnalysisRecord, error) {
	nLat, nLon := spatial.NormalizeCoords(lat, lon)

	query := `
		SELECT id, lat, lon, radius_m, profile_key, result_json, pois_json,
			   quiet_score, base_score, created_at, expires_at
		FROM analyses
		WHERE lat = ? AND lon = ? AND radius_m = ? AND profile_key = ? AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	record := &models.AnalysisRecord{}
	err := r.db.QueryRow(query, nLat, nLon, radiusM, profileKey, time.Now()).Scan(
		&record.ID,
		&record.Lat,
		&record.Lon,
		&record.RadiusM,
		&record.ProfileKey,
		&record.ResultJSON,
		&record.POIsJSON,
		&record.QuietScore,
		&record.BaseScore,
		&record.CreatedAt,
		&record.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cached analysis: %w", err)
	}

	return record, nil
}

// FindSnapshotForRescore returns the freshest unexpired analysis at the
// coordinates regardless of profile, so a profile switch can reuse its POI
// snapshot.
func (r *AnalysisRepository) FindSnapshotForRescore(lat, lon float64, radiusM int) (*models.AnalysisRecord, error) {
	nLat, nLon := spatial.NormalizeCoords(lat, lon)

	query := `
		SELECT id, lat, lon, radius_m, profile_key, result_json, pois_json,
			   quiet_score, base_score, created_at, expires_at
		FROM analyses
		WHERE lat = ? AND lon = ? AND radius_m = ? AND expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	record := &models.AnalysisRecord{}
	err := r.db.QueryRow(query, nLat, nLon, radiusM, time.Now()).Scan(
		&record.ID,
		&record.Lat,
		&record.Lon,
		&record.RadiusM,
		&record.ProfileKey,
		&record.ResultJSON,
		&record.POIsJSON,
		&record.QuietScore,
		&record.BaseScore,
		&record.CreatedAt,
		&record.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find rescore snapshot: %w", err)
	}

	return record, nil
}

// DeleteExpired removes expired analyses, returning the count removed
func (r *AnalysisRepository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec("DELETE FROM analyses WHERE expires_at < ?", time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired analyses: %w", err)
	}
	return result.RowsAffected()
}
