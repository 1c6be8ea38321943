package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type csvSource struct{}

func (csvSource) CanLoad(name string) bool {
	n := strings.ToLower(name)
	return strings.HasSuffix(n, ".csv") || strings.HasSuffix(n, ".tsv")
}

func (csvSource) Load(ctx context.Context, path string, opt LoadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	br := bufio.NewReaderSize(f, 64<<10)
	delim := opt.Delimiter
	if delim == 0 {
		head, _ := br.Peek(br.Size())
		if i := bytes.IndexByte(head, '\n'); i >= 0 {
			head = head[:i]
		}
		delim = sniffDelimiter(path, head)
	}
	t, err := ReadCSV(ctx, br, delim, opt.MaxRows)
	if err != nil {
		return nil, err
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// ReadCSV reads a header line followed by records. Short records are padded
// with empty cells.
func ReadCSV(ctx context.Context, in io.Reader, delim rune, maxRows int) (*Table, error) {
	if delim == 0 {
		delim = ','
	}
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv has no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	// strip a UTF-8 BOM left by spreadsheet exports
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := &Table{Header: header}
	seen := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", seen+1, err)
		}
		seen++
		if seen%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if maxRows > 0 && len(t.Rows) >= maxRows {
			continue
		}
		if len(rec) < len(header) {
			tmp := make([]string, len(header))
			copy(tmp, rec)
			rec = tmp
		}
		t.Rows = append(t.Rows, rec)
	}
	if maxRows > 0 && seen > len(t.Rows) {
		t.Warnings = append(t.Warnings, fmt.Sprintf("loaded only %d/%d rows due to MaxRows", len(t.Rows), seen))
	}
	return t, nil
}

// sniffDelimiter picks the most frequent of tab, ';' and ',' in the header
// line. Ties and delimiter-free headers fall back to the file extension.
func sniffDelimiter(path string, header []byte) rune {
	tabs := bytes.Count(header, []byte{'\t'})
	semis := bytes.Count(header, []byte{';'})
	commas := bytes.Count(header, []byte{','})
	switch {
	case tabs > semis && tabs > commas:
		return '\t'
	case semis > tabs && semis > commas:
		return ';'
	case commas > tabs && commas > semis:
		return ','
	}
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
