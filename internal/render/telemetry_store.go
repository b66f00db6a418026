package render

import (
	"database/sql"
	"fmt"
	"time"
)

// telemetryTimeLayout pads fractional seconds to a fixed width so sqlite's
// lexicographic text comparison and ordering agree with time order.
const telemetryTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// TierChangeRecord is one persisted tier transition.
type TierChangeRecord struct {
	ID        int64       `json:"id"`
	FromTier  QualityTier `json:"from_tier"`
	ToTier    QualityTier `json:"to_tier"`
	Fps       float64     `json:"fps"`
	ChangedAt time.Time   `json:"changed_at"`
}

// FpsPoint is one persisted FPS sample.
type FpsPoint struct {
	Fps       float64     `json:"fps"`
	Tier      QualityTier `json:"tier"`
	SampledAt time.Time   `json:"sampled_at"`
}

// TelemetryStore persists tier changes and FPS samples for after-the-fact
// analysis. It implements TierRecorder so it can plug straight into the
// quality controller; the core never depends on it being present.
type TelemetryStore struct {
	db *sql.DB
}

// NewTelemetryStore creates a store backed by the given database.
func NewTelemetryStore(db *sql.DB) *TelemetryStore {
	return &TelemetryStore{db: db}
}

// RecordTierChange persists one transition.
func (s *TelemetryStore) RecordTierChange(from, to QualityTier, fps float64, at time.Time) error {
	query := `
		INSERT INTO render_tier_changes (from_tier, to_tier, fps, changed_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, from.String(), to.String(), fps, at.UTC().Format(telemetryTimeLayout))
	if err != nil {
		return fmt.Errorf("inserting tier change %s->%s: %w", from, to, err)
	}
	return nil
}

// ListTierChanges returns the most recent transitions, newest first.
func (s *TelemetryStore) ListTierChanges(limit int) ([]TierChangeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, from_tier, to_tier, fps, changed_at
		FROM render_tier_changes
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing tier changes: %w", err)
	}
	defer rows.Close()

	var records []TierChangeRecord
	for rows.Next() {
		var rec TierChangeRecord
		var fromStr, toStr, atStr string
		if err := rows.Scan(&rec.ID, &fromStr, &toStr, &rec.Fps, &atStr); err != nil {
			return nil, fmt.Errorf("scanning tier change: %w", err)
		}
		if rec.FromTier, err = ParseQualityTier(fromStr); err != nil {
			return nil, err
		}
		if rec.ToTier, err = ParseQualityTier(toStr); err != nil {
			return nil, err
		}
		if rec.ChangedAt, err = time.Parse(telemetryTimeLayout, atStr); err != nil {
			return nil, fmt.Errorf("parsing tier change timestamp: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordFpsSample persists one FPS sample with the tier active at the time.
func (s *TelemetryStore) RecordFpsSample(fps float64, tier QualityTier, at time.Time) error {
	query := `
		INSERT INTO render_fps_samples (fps, tier, sampled_at)
		VALUES (?, ?, ?)
	`
	_, err := s.db.Exec(query, fps, tier.String(), at.UTC().Format(telemetryTimeLayout))
	if err != nil {
		return fmt.Errorf("inserting fps sample: %w", err)
	}
	return nil
}

// FpsSeries returns samples recorded at or after since, oldest first.
func (s *TelemetryStore) FpsSeries(since time.Time) ([]FpsPoint, error) {
	query := `
		SELECT fps, tier, sampled_at
		FROM render_fps_samples
		WHERE sampled_at >= ?
		ORDER BY sampled_at ASC
	`
	rows, err := s.db.Query(query, since.UTC().Format(telemetryTimeLayout))
	if err != nil {
		return nil, fmt.Errorf("querying fps series: %w", err)
	}
	defer rows.Close()

	var points []FpsPoint
	for rows.Next() {
		var p FpsPoint
		var tierStr, atStr string
		if err := rows.Scan(&p.Fps, &tierStr, &atStr); err != nil {
			return nil, fmt.Errorf("scanning fps sample: %w", err)
		}
		if p.Tier, err = ParseQualityTier(tierStr); err != nil {
			return nil, err
		}
		if p.SampledAt, err = time.Parse(telemetryTimeLayout, atStr); err != nil {
			return nil, fmt.Errorf("parsing fps sample timestamp: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Verify at compile time that the store satisfies TierRecorder.
var _ TierRecorder = (*TelemetryStore)(nil)
