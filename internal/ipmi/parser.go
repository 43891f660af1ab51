package ipmi

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrParse the output is not the expected comma-separated table.
var ErrParse = errors.New("unexpected ipmi-sensors output")

const (
	nameColumn    = "name"
	readingColumn = "reading"

	notAvailable = "N/A"
)

// Readings maps sensor name to reading value for one cycle.
type Readings map[string]string

// Names returns the sensor names in sorted order.
func (r Readings) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize trims s and replaces the remaining spaces with underscores.
func Normalize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
}

// Parse reads `ipmi-sensors --comma-separated-output` text. The header row
// must name a Name and a Reading column. Rows with a blank name, a blank
// reading or an N/A reading are dropped, as are rows too short to hold
// both columns. A later row overwrites an earlier one with the same name.
func Parse(text string) (Readings, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrParse)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	nameIdx, readingIdx := -1, -1
	for i, field := range header {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case nameColumn:
			nameIdx = i
		case readingColumn:
			readingIdx = i
		}
	}
	if nameIdx < 0 || readingIdx < 0 {
		return nil, fmt.Errorf("%w: header %q lacks Name or Reading column", ErrParse, strings.Join(header, ","))
	}

	readings := make(Readings)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		if nameIdx >= len(row) || readingIdx >= len(row) {
			continue
		}

		name := Normalize(row[nameIdx])
		value := Normalize(row[readingIdx])
		if name == "" || value == "" || value == notAvailable {
			continue
		}
		readings[name] = value
	}

	return readings, nil
}
