package core

import (
	"testing"
	"time"
)

func TestParseQueryBook(t *testing.T) {
	now := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	tbl := tableOf([]string{"SQL", "result_filepath"},
		[]string{"SELECT 1", "out/${DATE:yyyyMMdd}/one.csv"},
		[]string{"", "out/skip.csv"},
		[]string{"SELECT 2", ""},
		[]string{"SELECT 3", "three.csv"},
	)

	got, err := ParseQueryBook(tbl, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].ResultPath != "out/20240229/one.csv" || got[0].OriginalPath != "out/${DATE:yyyyMMdd}/one.csv" {
		t.Errorf("entry 0 = %+v", got[0])
	}
	if got[1].SQL != "SELECT 3" {
		t.Errorf("entry 1 = %+v", got[1])
	}
}

func TestParseQueryBook_MissingColumns(t *testing.T) {
	if _, err := ParseQueryBook(tableOf([]string{"sql"}), time.Now()); err == nil {
		t.Error("missing result_filepath column accepted")
	}
}
