package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/KaramelBytes/tabletalk-cli/internal/dataset"
)

type csvLoader struct{}

func (csvLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvLoader) Load(path string) (*dataset.Dataset, error) {
	return LoadCSV(path)
}

// LoadCSV reads a delimited file whose first record is the header.
func LoadCSV(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return readCSV(f, path, sniffDelimiter(path))
}

func readCSV(in io.Reader, path string, delim rune) (*dataset.Dataset, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	// TrimLeadingSpace would swallow empty tab-separated fields.
	r.TrimLeadingSpace = delim != '\t'
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &dataset.Dataset{}, nil
		}
		return nil, &ParseError{Path: path, Err: fmt.Errorf("read header: %w", err)}
	}
	var raw [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &ParseError{Path: path, Err: fmt.Errorf("read row %d: %w", len(raw)+1, err)}
		}
		raw = append(raw, rec)
	}
	return buildDataset(header, raw), nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
