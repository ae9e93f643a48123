package parser

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
)

// Loader turns a tabular file into a Dataset.
type Loader interface {
	CanLoad(filename string) bool
	Load(path string) (*dataset.Dataset, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// ErrUnsupported indicates a format is not supported.
var ErrUnsupported = errors.New("unsupported dataset format")

// ParseError reports a file that exists but could not be decoded. LoadFile
// pairs it with an empty dataset so callers can continue.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LoadFile selects a loader based on filename and returns the parsed dataset.
// Malformed content yields an empty dataset together with a *ParseError.
func LoadFile(path string) (*dataset.Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	for _, l := range registry {
		if !l.CanLoad(path) {
			continue
		}
		ds, err := l.Load(path)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				return &dataset.Dataset{}, pe
			}
			return nil, err
		}
		return ds, nil
	}
	return nil, fmt.Errorf("%w: %s (use .csv, .tsv or .xlsx)", ErrUnsupported, path)
}

// buildDataset converts a header and raw rows into records. Blank header
// cells become column_N, duplicates get a numeric suffix, and rows are
// padded or truncated to the header width.
func buildDataset(header []string, raw [][]string) *dataset.Dataset {
	cols := normalizeHeader(header)
	rows := make([]dataset.Record, 0, len(raw))
	for _, rec := range raw {
		if isBlankRow(rec) {
			continue
		}
		r := make(dataset.Record, len(cols))
		for i, c := range cols {
			v := ""
			if i < len(rec) {
				v = rec[i]
			}
			r[c] = v
		}
		rows = append(rows, r)
	}
	return dataset.New(cols, rows)
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := map[string]int{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if n, ok := seen[name]; ok {
			base := name
			for {
				n++
				name = base + "_" + strconv.Itoa(n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[name] = 1
		out[i] = name
	}
	return out
}

func isBlankRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}
