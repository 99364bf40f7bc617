package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/korean"
)

func TestReadTable(t *testing.T) {
	in := "name, port ,note\n\nalpha,1433,\"a, b\"\n,,\nbeta,3306\n"
	tbl, err := ReadTable(strings.NewReader(in), "", Limits{})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}

	if got := strings.Join(tbl.Header, "|"); got != "name|port|note" {
		t.Errorf("Header = %q", got)
	}
	if len(tbl.Records) != 2 {
		t.Fatalf("got %d records, want 2 (blank rows skipped)", len(tbl.Records))
	}
	if tbl.Records[0]["note"] != "a, b" {
		t.Errorf("quoted cell = %q", tbl.Records[0]["note"])
	}
	if v, ok := tbl.Records[1]["note"]; !ok || v != "" {
		t.Errorf("short row not padded: %v", tbl.Records[1])
	}
}

func TestReadTable_DuplicateHeader(t *testing.T) {
	_, err := ReadTable(strings.NewReader("name,name\nalpha,beta\n"), "", Limits{})

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if ve.Field != "name" {
		t.Errorf("Field = %q, want name", ve.Field)
	}
	if got := MapError(err).Code; got != "VAL007" {
		t.Errorf("code = %q, want VAL007", got)
	}
}

func TestReadTable_RepeatedBlankHeadersAllowed(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("a,,\n1,,\n"), "", Limits{})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if tbl.Records[0]["a"] != "1" {
		t.Errorf("record = %v", tbl.Records[0])
	}
}

func TestReadTable_Limits(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		lim     Limits
		wantErr error
	}{
		{"too many rows", "a\n1\n2\n3\n", Limits{MaxRows: 2}, ErrTooManyRows},
		{"row limit inclusive", "a\n1\n2\n", Limits{MaxRows: 2}, nil},
		{"too large", strings.Repeat("x", 101), Limits{MaxBytes: 100}, ErrInputTooLarge},
		{"size limit inclusive", "a\n" + strings.Repeat("x", 98), Limits{MaxBytes: 100}, nil},
		{"empty", "", Limits{}, ErrEmptyInput},
		{"only blank lines", "\n\n,,\n", Limits{}, ErrEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input), "", tt.lim)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReadTable_BOMAndCharset(t *testing.T) {
	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, []byte("database_name\napp\n")...)
	tbl, err := ReadTable(bytes.NewReader(withBOM), "", Limits{})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Header[0] != "database_name" {
		t.Errorf("BOM not stripped: %q", tbl.Header[0])
	}

	euckr, err := korean.EUCKR.NewEncoder().String("이름\nx\n")
	if err != nil {
		t.Fatal(err)
	}
	tbl, err = ReadTable(strings.NewReader(euckr), "euc-kr", Limits{})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Header[0] != "이름" {
		t.Errorf("EUC-KR header decoded as %q", tbl.Header[0])
	}

	// "café" in Windows-1252.
	tbl, err = ReadTable(bytes.NewReader([]byte{'c', 'a', 'f', 0xE9, '\n', '1', '\n'}), "windows-1252", Limits{})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Header[0] != "café" {
		t.Errorf("windows-1252 header decoded as %q", tbl.Header[0])
	}

	if _, err := ReadTable(strings.NewReader("a\n"), "klingon", Limits{}); err == nil {
		t.Error("unknown charset accepted")
	}
}

func TestHeaderIndex_Lookup(t *testing.T) {
	idx := MakeHeaderIndex([]string{" DB_Name ", "port", "port"})
	if pos, ok := idx.Lookup("database_name", "db_name"); !ok || pos != 0 {
		t.Errorf("Lookup alias = (%d, %v)", pos, ok)
	}
	if pos, _ := idx.Lookup("PORT"); pos != 1 {
		t.Errorf("duplicate header resolved to %d, want first", pos)
	}
	if _, ok := idx.Lookup("missing"); ok {
		t.Error("Lookup found a missing column")
	}
}

func TestFileLoader_ExpandsDateVars(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "export_20240115.csv"), []byte("a\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := FileLoader{Now: func() time.Time { return time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC) }}
	tbl, err := l.Load(context.Background(), filepath.Join(dir, "export_${DATE:yyyyMMdd}.csv"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tbl.Records) != 1 {
		t.Errorf("got %d records", len(tbl.Records))
	}

	if _, err := l.Load(context.Background(), filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("missing file loaded")
	}
}
