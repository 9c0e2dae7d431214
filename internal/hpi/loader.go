package hpi

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/aristath/propsight/pkg/formulas"
)

// compactQuarterLayout matches the source's native date format, e.g. "Mar-17".
const compactQuarterLayout = "Jan-06"

// Column aliases recognized in the CSV header, compared case-insensitively.
var (
	dateAliases  = []string{"quarter", "date"}
	valueAliases = []string{"all", "hpi"}
)

// Loader parses quarterly index CSVs into validated Series
type Loader struct {
	log zerolog.Logger
}

// NewLoader creates a new CSV loader
func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{
		log: log.With().Str("component", "hpi_loader").Logger(),
	}
}

// Load reads the CSV at path and returns a validated quarterly Series.
// Returns SourceNotFoundError if the file is missing and SchemaError if
// no usable series can be extracted.
func (l *Loader) Load(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, SourceNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to open series source: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // Tolerate ragged rows; cells are bounds-checked below
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, SchemaError{Reason: fmt.Sprintf("malformed csv: %v", err)}
	}
	if len(records) < 2 {
		return nil, SchemaError{Reason: "no data rows"}
	}

	header := records[0]
	rows := records[1:]

	dateIdx := findColumn(header, dateAliases)
	if dateIdx < 0 {
		return nil, SchemaError{Reason: fmt.Sprintf(
			"no date column (expected one of: %s)", strings.Join(dateAliases, ", "))}
	}

	valueIdx := findColumn(header, valueAliases)
	if valueIdx < 0 {
		valueIdx = findNumericColumn(rows, len(header), dateIdx)
	}
	if valueIdx < 0 {
		return nil, SchemaError{Reason: fmt.Sprintf(
			"no value column (expected one of: %s, or a fully numeric column)",
			strings.Join(valueAliases, ", "))}
	}

	dates, anyStrictFailure := parseDatesStrict(rows, dateIdx)
	if anyStrictFailure {
		l.log.Debug().Msg("compact date format did not cover all rows, using permissive parsing")
		dates = parseDatesPermissive(rows, dateIdx)
	}

	points := make([]Point, 0, len(rows))
	dropped := 0
	for i, row := range rows {
		if dates[i] == nil {
			dropped++
			continue
		}
		if valueIdx >= len(row) {
			dropped++
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[valueIdx]), 64)
		if err != nil || !formulas.IsFinite(value) {
			dropped++
			continue
		}
		points = append(points, Point{Date: *dates[i], Value: value})
	}
	if len(points) == 0 {
		return nil, SchemaError{Reason: "no usable rows after parsing"}
	}
	if dropped > 0 {
		l.log.Warn().Int("dropped", dropped).Str("path", path).Msg("dropped unparsable rows")
	}

	// Stable sort keeps file order for equal dates, so the later source row
	// wins when two observations land in the same quarter.
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	series := make(Series, 0, len(points))
	for _, p := range points {
		p.Date = QuarterEnd(p.Date)
		if n := len(series); n > 0 && series[n-1].Date.Equal(p.Date) {
			series[n-1] = p
			continue
		}
		series = append(series, p)
	}

	l.log.Info().
		Int("observations", series.Len()).
		Time("first", series[0].Date).
		Time("last", series.Last().Date).
		Str("path", path).
		Msg("loaded quarterly series")

	return series, nil
}

// findColumn returns the index of the first header cell matching any alias,
// compared case-insensitively after trimming, or -1.
func findColumn(header []string, aliases []string) int {
	for _, alias := range aliases {
		for i, cell := range header {
			if strings.EqualFold(strings.TrimSpace(cell), alias) {
				return i
			}
		}
	}
	return -1
}

// findNumericColumn returns the first column (other than skipIdx) whose every
// non-empty cell parses as a number, requiring at least one non-empty cell.
func findNumericColumn(rows [][]string, width, skipIdx int) int {
	for col := 0; col < width; col++ {
		if col == skipIdx {
			continue
		}
		nonEmpty := 0
		numeric := true
		for _, row := range rows {
			if col >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			nonEmpty++
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
				break
			}
		}
		if numeric && nonEmpty > 0 {
			return col
		}
	}
	return -1
}

// parseDatesStrict parses every date cell with the compact month-year layout.
// The second return reports whether any row failed, which switches the whole
// column to permissive parsing (mixed-format sources are parsed uniformly).
func parseDatesStrict(rows [][]string, dateIdx int) ([]*time.Time, bool) {
	dates := make([]*time.Time, len(rows))
	failed := false
	for i, row := range rows {
		if dateIdx >= len(row) {
			failed = true
			continue
		}
		t, err := time.Parse(compactQuarterLayout, strings.TrimSpace(row[dateIdx]))
		if err != nil {
			failed = true
			continue
		}
		dates[i] = &t
	}
	return dates, failed
}

// parseDatesPermissive parses every date cell with a general-purpose parser.
// Unparsable cells stay nil and their rows are dropped by the caller.
func parseDatesPermissive(rows [][]string, dateIdx int) []*time.Time {
	dates := make([]*time.Time, len(rows))
	for i, row := range rows {
		if dateIdx >= len(row) {
			continue
		}
		t, err := dateparse.ParseAny(strings.TrimSpace(row[dateIdx]))
		if err != nil {
			continue
		}
		dates[i] = &t
	}
	return dates
}
