package hpi

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/propsight/internal/database"
)

const quarterLayout = "2006-01-02"

// Repository persists the loaded series so the API can serve raw observations
// without re-reading the CSV. The stored set is replaced wholesale on each
// successful load; the loader never reads from here.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new observation repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "hpi_repository").Logger(),
	}
}

// Replace swaps the stored observation set for the given series atomically
func (r *Repository) Replace(series Series) error {
	loadedAt := time.Now().Unix()

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM hpi_observations"); err != nil {
			return fmt.Errorf("failed to clear observations: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO hpi_observations (quarter, value, loaded_at)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range series {
			if _, err := stmt.Exec(p.Date.Format(quarterLayout), p.Value, loadedAt); err != nil {
				return fmt.Errorf("failed to insert observation %s: %w",
					p.Date.Format(quarterLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Int("observations", series.Len()).Msg("replaced stored series")
	return nil
}

// All returns the stored series in chronological order
func (r *Repository) All() (Series, error) {
	rows, err := r.db.Query(`
		SELECT quarter, value
		FROM hpi_observations
		ORDER BY quarter ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var series Series
	for rows.Next() {
		var quarter string
		var value float64
		if err := rows.Scan(&quarter, &value); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		date, err := time.ParseInLocation(quarterLayout, quarter, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("stored quarter %q is not a date: %w", quarter, err)
		}
		series = append(series, Point{Date: date, Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate observations: %w", err)
	}

	return series, nil
}

// Count returns the number of stored observations
func (r *Repository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM hpi_observations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return count, nil
}
