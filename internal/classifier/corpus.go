package classifier

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Example is one labelled training record.
type Example struct {
	Text       string
	Department string
	Priority   string // kept for reference; never used for fitting
}

// LoadCorpus reads a CSV training corpus. The first row is a header and is
// skipped; each following row holds text, department label and priority
// label.
func LoadCorpus(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadCorpus(f)
}

// ReadCorpus parses a CSV training corpus from r. See LoadCorpus.
func ReadCorpus(r io.Reader) ([]Example, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("corpus is empty")
		}
		return nil, fmt.Errorf("read corpus header: %w", err)
	}

	var examples []Example
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read corpus line %d: %w", line, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("corpus line %d: want at least 2 columns, got %d", line, len(rec))
		}
		ex := Example{
			Text:       rec[0],
			Department: strings.TrimSpace(rec[1]),
		}
		if len(rec) > 2 {
			ex.Priority = strings.TrimSpace(rec[2])
		}
		examples = append(examples, ex)
	}
	return examples, nil
}
