package core

// input.go reads administrator-sized tabular input into memory.
//
// Every source passes through the same pipeline:
//  1. Size bound (Limits.MaxBytes) checked before parsing
//  2. Charset decoding via golang.org/x/text; a BOM always wins over the
//     configured encoding
//  3. Lenient CSV parsing; blank lines are skipped
//  4. Row bound (Limits.MaxRows) checked on data rows

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	ErrInputTooLarge = errors.New("input too large")
	ErrTooManyRows   = errors.New("too many rows")
	ErrEmptyInput    = errors.New("input has no header row")
)

// Limits bounds a single tabular input. Zero means unlimited.
type Limits struct {
	MaxRows  int
	MaxBytes int64
}

// HeaderIndex maps lowercase header names to their column position.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex. The first occurrence of a name wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := CleanHeader(h)
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

// CleanHeader lowercases and trims a header cell.
func CleanHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// Lookup returns the position of the first name present.
func (h HeaderIndex) Lookup(names ...string) (int, bool) {
	for _, n := range names {
		if pos, ok := h[CleanHeader(n)]; ok {
			return pos, true
		}
	}
	return 0, false
}

// NewDecodingReader wraps r so it yields UTF-8. charset is any WHATWG label
// ("utf-8", "euc-kr", "windows-1252", ...); empty means UTF-8.
func NewDecodingReader(r io.Reader, charset string) (io.Reader, error) {
	var fallback encoding.Encoding = unicode.UTF8
	if cs := strings.TrimSpace(charset); cs != "" {
		enc, err := htmlindex.Get(cs)
		if err != nil {
			return nil, &ValidationError{Field: "encoding", Value: cs, Message: "unsupported input encoding"}
		}
		fallback = enc
	}
	return transform.NewReader(r, unicode.BOMOverride(fallback.NewDecoder())), nil
}

// ReadTable reads all of r as CSV. The first non-blank record is the header.
func ReadTable(r io.Reader, charset string, lim Limits) (*Table, error) {
	if lim.MaxBytes > 0 {
		raw, err := io.ReadAll(io.LimitReader(r, lim.MaxBytes+1))
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		if int64(len(raw)) > lim.MaxBytes {
			return nil, fmt.Errorf("%w: limit is %d bytes", ErrInputTooLarge, lim.MaxBytes)
		}
		r = bytes.NewReader(raw)
	}

	dec, err := NewDecodingReader(r, charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var t Table
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ValidationError{Message: "malformed CSV", Err: err}
		}
		if blankRecord(rec) {
			continue
		}

		if t.Header == nil {
			t.Header = make([]string, len(rec))
			seen := make(map[string]bool, len(rec))
			for i, h := range rec {
				h = strings.TrimSpace(h)
				// Records are keyed by header, so a repeated name would
				// shadow the later column's data.
				if h != "" && seen[h] {
					return nil, &ValidationError{Field: h, Message: "duplicate column in header"}
				}
				seen[h] = true
				t.Header[i] = h
			}
			continue
		}

		if lim.MaxRows > 0 && len(t.Records) >= lim.MaxRows {
			return nil, fmt.Errorf("%w: limit is %d rows", ErrTooManyRows, lim.MaxRows)
		}

		row := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if _, seen := row[h]; seen {
				continue
			}
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		t.Records = append(t.Records, row)
	}

	if t.Header == nil {
		return nil, ErrEmptyInput
	}
	return &t, nil
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// FileLoader loads import sources from the local filesystem. Paths may carry
// ${DATE:fmt} variables, expanded against Now.
type FileLoader struct {
	Charset string
	Limits  Limits
	Now     func() time.Time
}

// Load implements DataLoader.
func (l FileLoader) Load(ctx context.Context, source string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	path := ExpandPathVars(source, now())

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}
	defer f.Close()

	return ReadTable(f, l.Charset, l.Limits)
}
