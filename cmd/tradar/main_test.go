package main

import (
	"strings"
	"testing"
)

func TestParseCatalog(t *testing.T) {
	tsv := "application_number\ttitle_korean\ttitle_english\tstatus\tclass_codes\tgoods_services\timage_path\tthumb_url\n" +
		"40-2021-0012345\t소나타\tSONATA\t등록\t09;42\t전자기기\timg/1.png\thttps://cdn.example/1.png\n" +
		"40-2020-0054321\t\tMELODY\t심사중\t\t\t\t\n" +
		"\t무시됨\t\t\t\t\t\t\n"

	marks, err := parseCatalog(strings.NewReader(tsv))
	if err != nil {
		t.Fatalf("parseCatalog: %v", err)
	}
	if len(marks) != 2 {
		t.Fatalf("expected 2 records, got %d", len(marks))
	}

	first := marks[0]
	if first.ApplicationNumber != "40-2021-0012345" {
		t.Errorf("unexpected application number: %q", first.ApplicationNumber)
	}
	if first.TitleKorean != "소나타" || first.TitleEnglish != "SONATA" {
		t.Errorf("unexpected titles: %q / %q", first.TitleKorean, first.TitleEnglish)
	}
	if len(first.ClassCodes) != 2 || first.ClassCodes[0] != "09" || first.ClassCodes[1] != "42" {
		t.Errorf("unexpected class codes: %v", first.ClassCodes)
	}
	if first.ImagePath != "img/1.png" {
		t.Errorf("unexpected image path: %q", first.ImagePath)
	}

	second := marks[1]
	if second.ApplicationNumber != "40-2020-0054321" {
		t.Errorf("unexpected application number: %q", second.ApplicationNumber)
	}
	if second.ClassCodes != nil {
		t.Errorf("expected no class codes, got %v", second.ClassCodes)
	}
}

func TestParseCatalogColumnOrder(t *testing.T) {
	// Columns may appear in any order; unknown columns are ignored.
	tsv := "status\tapplication_number\textra\ttitle_english\n" +
		"공고\t40-2019-0000001\tjunk\tSTARBUCKS\n"

	marks, err := parseCatalog(strings.NewReader(tsv))
	if err != nil {
		t.Fatalf("parseCatalog: %v", err)
	}
	if len(marks) != 1 {
		t.Fatalf("expected 1 record, got %d", len(marks))
	}
	if marks[0].Status != "공고" || marks[0].TitleEnglish != "STARBUCKS" {
		t.Errorf("unexpected record: %+v", marks[0])
	}
}

func TestParseCatalogMissingRequiredColumn(t *testing.T) {
	tsv := "title_korean\tstatus\n소나타\t등록\n"
	if _, err := parseCatalog(strings.NewReader(tsv)); err == nil {
		t.Fatal("expected error for catalog without application_number")
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 << 20, "5.0 MB"},
		{3 << 30, "3.0 GB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.n); got != tc.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("스타벅스커피", 4); got != "스타벅스" {
		t.Errorf("truncateRunes = %q", got)
	}
	if got := truncateRunes("ok", 4); got != "ok" {
		t.Errorf("truncateRunes short = %q", got)
	}
}
