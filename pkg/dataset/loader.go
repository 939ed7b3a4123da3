package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mimir-aip/activelearn/pkg/models"
)

// Column names recognized by LoadCSV. Every other column is a numeric feature.
const (
	IDColumn      = "id"
	FlaggedColumn = "flagged"
)

// LoadCSVFile reads a labeled pool from a CSV file on disk
func LoadCSVFile(path string) (*Pool, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return LoadCSV(f)
}

// LoadCSV reads a labeled pool. The header must contain "id" and "flagged";
// the remaining columns become features in header order. It returns the
// pool and the feature names.
func LoadCSV(r io.Reader) (*Pool, []string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idCol, flagCol := -1, -1
	var featureCols []int
	var featureNames []string
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case IDColumn:
			idCol = i
		case FlaggedColumn:
			flagCol = i
		default:
			featureCols = append(featureCols, i)
			featureNames = append(featureNames, strings.TrimSpace(name))
		}
	}
	if idCol < 0 || flagCol < 0 {
		return nil, nil, fmt.Errorf("CSV header must contain %q and %q columns", IDColumn, FlaggedColumn)
	}
	if len(featureCols) == 0 {
		return nil, nil, fmt.Errorf("CSV has no feature columns")
	}

	var examples []models.Example
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}

		flagged, err := parseFlag(record[flagCol])
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}

		features := make([]float64, len(featureCols))
		for j, col := range featureCols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: feature %q: %w", line, featureNames[j], err)
			}
			features[j] = v
		}

		examples = append(examples, models.Example{
			ID:       strings.TrimSpace(record[idCol]),
			Features: features,
			Flagged:  flagged,
		})
	}

	pool, err := NewPool(examples)
	if err != nil {
		return nil, nil, err
	}
	return pool, featureNames, nil
}

// WriteCSV writes examples in the format LoadCSV reads
func WriteCSV(w io.Writer, examples []models.Example, featureNames []string) error {
	writer := csv.NewWriter(w)

	header := append([]string{IDColumn, FlaggedColumn}, featureNames...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, e := range examples {
		row := make([]string, 0, len(header))
		row = append(row, e.ID, strconv.FormatBool(e.Flagged))
		for _, f := range e.Features {
			row = append(row, strconv.FormatFloat(f, 'g', -1, 64))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true, nil
	case "0", "false", "f", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid flagged value %q", s)
}
