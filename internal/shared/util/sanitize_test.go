package util

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "brief.pdf", want: "brief.pdf"},
		{name: "trims", in: "  brief.pdf ", want: "brief.pdf"},
		{name: "separators", in: "evidence/a\\b.pdf", want: "evidence_a_b.pdf"},
		{name: "traversal", in: "../etc/passwd", wantErr: true},
		{name: "blank", in: "   ", wantErr: true},
		{name: "dot", in: ".", wantErr: true},
		{name: "windows traversal", in: "..\\secrets.txt", wantErr: true},
		{name: "double dot inside name", in: "report..v2.pdf", want: "report..v2.pdf"},
		{name: "control characters", in: "wit\x00ness\n.txt", want: "witness.txt"},
		{name: "unicode", in: "déclaration témoin.pdf", want: "déclaration témoin.pdf"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := SanitizeFileName(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeFileName(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileNameErrorIsSentinel(t *testing.T) {
	if _, err := SanitizeFileName("../etc/passwd"); !errors.Is(err, ErrInvalidFileName) {
		t.Fatalf("expected ErrInvalidFileName, got %v", err)
	}
}

func TestSanitizeFileNameTruncatesKeepingExtension(t *testing.T) {
	long := strings.Repeat("é", 150) + ".pdf"
	got, err := SanitizeFileName(long)
	if err != nil {
		t.Fatalf("SanitizeFileName: %v", err)
	}
	if len(got) > MaxFileNameBytes {
		t.Fatalf("expected at most %d bytes, got %d", MaxFileNameBytes, len(got))
	}
	if !strings.HasSuffix(got, ".pdf") || !utf8.ValidString(got) {
		t.Fatalf("expected valid UTF-8 name ending in .pdf, got %q", got)
	}
}
