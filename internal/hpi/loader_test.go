package hpi

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hpi.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestLoader() *Loader {
	return NewLoader(zerolog.Nop())
}

func TestLoadCompactQuarterFormat(t *testing.T) {
	path := writeCSV(t, "Quarter,ALL\nMar-17,100.5\nJun-17,102.0\nSep-17,103.5\n")

	series, err := newTestLoader().Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, series.Len())

	assert.Equal(t, date(2017, time.March, 31), series[0].Date)
	assert.Equal(t, date(2017, time.June, 30), series[1].Date)
	assert.Equal(t, date(2017, time.September, 30), series[2].Date)
	assert.Equal(t, []float64{100.5, 102.0, 103.5}, series.Values())
}

func TestLoadDateAndHPIAliases(t *testing.T) {
	path := writeCSV(t, "Date,HPI\nMar-18,120\nJun-18,121\n")

	series, err := newTestLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, series.Len())
	assert.Equal(t, []float64{120, 121}, series.Values())
}

func TestLoadPermissiveDates(t *testing.T) {
	// ISO dates fail the compact layout, so the whole column is reparsed
	// permissively.
	path := writeCSV(t, "Quarter,ALL\n2017-01-15,100\n2017-04-02,104\n")

	series, err := newTestLoader().Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, date(2017, time.March, 31), series[0].Date)
	assert.Equal(t, date(2017, time.June, 30), series[1].Date)
}

func TestLoadNumericFallbackColumn(t *testing.T) {
	// Neither ALL nor HPI present; "Index" is fully numeric while "City" is not.
	path := writeCSV(t, "Quarter,City,Index\nMar-17,Mumbai,100\nJun-17,Mumbai,105\n")

	series, err := newTestLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 105}, series.Values())
}

func TestLoadDropsUnparsableRows(t *testing.T) {
	path := writeCSV(t, "Quarter,ALL\nMar-17,100\nJun-17,n/a\nSep-17,104\n")

	series, err := newTestLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 104}, series.Values())
}

func TestLoadDuplicateQuartersKeepLater(t *testing.T) {
	// Jan-17 and Feb-17 both land in Q1 2017; the later source row wins.
	path := writeCSV(t, "Quarter,ALL\nJan-17,98\nFeb-17,99\nJun-17,101\n")

	series, err := newTestLoader().Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, date(2017, time.March, 31), series[0].Date)
	assert.Equal(t, 99.0, series[0].Value)
}

func TestLoadSortsOutOfOrderRows(t *testing.T) {
	path := writeCSV(t, "Quarter,ALL\nSep-17,104\nMar-17,100\nJun-17,102\n")

	series, err := newTestLoader().Load(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 102, 104}, series.Values())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := newTestLoader().Load(filepath.Join(t.TempDir(), "missing.csv"))

	var notFound SourceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, notFound.Path, "missing.csv")
}

func TestLoadSchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no date column", "City,ALL\nMumbai,100\n"},
		{"no value column", "Quarter,City\nMar-17,Mumbai\n"},
		{"header only", "Quarter,ALL\n"},
		{"all rows unparsable", "Quarter,ALL\ngarbage,xyz\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestLoader().Load(writeCSV(t, tt.content))

			var schemaErr SchemaError
			assert.True(t, errors.As(err, &schemaErr), "expected SchemaError, got %v", err)
		})
	}
}
