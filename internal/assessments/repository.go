package assessments

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/propsight/internal/risk"
	"github.com/aristath/propsight/internal/sentiment"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// assessmentColumns keeps SELECTs aligned with scanRecord.
const assessmentColumns = `id, created_at, price_lakhs, growth_rate, volatility,
	sentiment_label, sentiment_score, location_factor, score, level, category,
	message, action, explanation, roi_percent, breakdown`

// Repository stores assessment records. The scoring breakdown travels as a
// msgpack blob so schema changes in the breakdown never need a migration.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates an assessment repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "assessments").Logger(),
	}
}

// Save inserts a record
func (r *Repository) Save(rec Record) error {
	blob, err := msgpack.Marshal(rec.Assessment.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode breakdown: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO assessments
		(id, created_at, price_lakhs, growth_rate, volatility,
		 sentiment_label, sentiment_score, location_factor, score, level,
		 category, message, action, explanation, roi_percent, breakdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.CreatedAt.Unix(),
		rec.Input.PriceLakhs,
		rec.Input.GrowthRate,
		rec.Input.Volatility,
		rec.Assessment.Breakdown.SentimentLabel,
		rec.Assessment.Breakdown.SentimentScore,
		rec.Input.LocationFactor,
		rec.Assessment.Score,
		string(rec.Assessment.Level),
		rec.Assessment.Category,
		rec.Assessment.Message,
		string(rec.Prescription.Action),
		rec.Prescription.Explanation,
		rec.Prescription.ROIPercent,
		blob,
	)
	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}

	r.log.Info().
		Str("id", rec.ID).
		Float64("score", rec.Assessment.Score).
		Str("action", string(rec.Prescription.Action)).
		Msg("assessment saved")

	return nil
}

// List returns the most recent records, newest first. A limit below 1 falls
// back to the default page size.
func (r *Repository) List(limit int) ([]Record, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.Query(`
		SELECT `+assessmentColumns+` FROM assessments
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assessments: %w", err)
	}

	return records, nil
}

// Get returns a record by ID, or nil when it does not exist
func (r *Repository) Get(id string) (*Record, error) {
	row := r.db.QueryRow(`
		SELECT `+assessmentColumns+` FROM assessments WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	return &rec, nil
}

// Count returns the number of stored records
func (r *Repository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM assessments`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assessments: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec            Record
		createdAt      int64
		label          string
		sentimentScore float64
		level          string
		action         string
		blob           []byte
	)

	err := row.Scan(
		&rec.ID,
		&createdAt,
		&rec.Input.PriceLakhs,
		&rec.Input.GrowthRate,
		&rec.Input.Volatility,
		&label,
		&sentimentScore,
		&rec.Input.LocationFactor,
		&rec.Assessment.Score,
		&level,
		&rec.Assessment.Category,
		&rec.Assessment.Message,
		&action,
		&rec.Prescription.Explanation,
		&rec.Prescription.ROIPercent,
		&blob,
	)
	if err != nil {
		return rec, err
	}

	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.Input.Sentiment = sentiment.Label(label)
	rec.Input.SentimentScore = &sentimentScore
	rec.Assessment.Level = risk.Level(level)
	rec.Prescription.Action = risk.Action(action)

	if err := msgpack.Unmarshal(blob, &rec.Assessment.Breakdown); err != nil {
		return rec, fmt.Errorf("failed to decode breakdown: %w", err)
	}

	return rec, nil
}
