package sstfile

import (
	"strings"
	"testing"
)

func TestReadTOCSkipsBlankLines(t *testing.T) {
	input := "Data.db\n\nStatistics.db\nTOC.txt\n\n"
	names, err := ReadTOC(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Data.db", "Statistics.db", "TOC.txt"}
	if len(names) != len(want) {
		t.Fatalf("got %v want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v want %v", names, want)
		}
	}
}

func TestHasComponent(t *testing.T) {
	names := []string{"Data.db", "Index.db"}
	if !HasComponent(names, "Data.db") {
		t.Fatal("expected Data.db present")
	}
	if HasComponent(names, "Filter.db") {
		t.Fatal("expected Filter.db absent")
	}
}
