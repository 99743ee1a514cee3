package intake

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kalambet/provform/internal/profile"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestPictureFromFile_PNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "me.bin")
	if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
		t.Fatal(err)
	}

	uri, err := PictureFromFile(path)
	if err != nil {
		t.Fatalf("PictureFromFile: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("uri = %q, want image/png data URI", uri)
	}
	if msg := profile.ValidateProfilePicture(&uri); msg != "" {
		t.Errorf("validator rejected sniffed picture: %s", msg)
	}
}

func TestPictureFromReader_NotAnImage(t *testing.T) {
	uri, err := PictureFromReader(strings.NewReader("%PDF-1.4 fake"), "cv.pdf")
	if err != nil {
		t.Fatalf("PictureFromReader: %v", err)
	}
	if !strings.HasPrefix(uri, "data:application/pdf;") {
		t.Errorf("uri = %q", uri)
	}
	if msg := profile.ValidateProfilePicture(&uri); msg != profile.MsgPictureNotImage {
		t.Errorf("validator message = %q, want %q", msg, profile.MsgPictureNotImage)
	}
}

func TestPictureFromReader_ExtensionFallback(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg"></svg>`
	uri, err := PictureFromReader(strings.NewReader(svg), "avatar.svg")
	if err != nil {
		t.Fatalf("PictureFromReader: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/svg+xml;base64,") {
		t.Errorf("uri = %q, want svg media type", uri)
	}
}

func TestPictureFromReader_OversizedFailsValidation(t *testing.T) {
	data := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, profile.MaxPictureBytes)...)

	uri, err := PictureFromReader(bytes.NewReader(data), "big.png")
	if err != nil {
		t.Fatalf("PictureFromReader: %v", err)
	}
	if msg := profile.ValidateProfilePicture(&uri); msg != profile.MsgPictureTooLarge {
		t.Errorf("validator message = %q, want %q", msg, profile.MsgPictureTooLarge)
	}
}

func TestPictureFromReader_Empty(t *testing.T) {
	if _, err := PictureFromReader(strings.NewReader(""), "empty.png"); err == nil {
		t.Error("expected error for empty picture")
	}
}

func TestPictureFromFile_Missing(t *testing.T) {
	if _, err := PictureFromFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBioFromPDF_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bio.pdf")
	if err := os.WriteFile(path, []byte("just some text"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := BioFromPDF(path); err == nil {
		t.Error("expected error for non-PDF input")
	}
}

func TestBioFromPDF(t *testing.T) {
	bio, err := BioFromPDF(filepath.Join("testdata", "bio.pdf"))
	if err != nil {
		t.Fatalf("BioFromPDF: %v", err)
	}
	want := "Jane Doe\n\nReading specialist & tutor\nSince 2010"
	if bio != want {
		t.Errorf("bio = %q, want %q", bio, want)
	}
	if msg := profile.ValidateBio(bio); msg != "" {
		t.Errorf("validator rejected extracted bio: %s", msg)
	}
}

func TestBioFromPDF_Capped(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("lorem ", 1000))
	path := writePDF(t, "Summary", long)

	bio, err := BioFromPDF(path)
	if err != nil {
		t.Fatalf("BioFromPDF: %v", err)
	}
	if n := len([]rune(bio)); n != maxBioChars {
		t.Errorf("bio has %d runes, want %d", n, maxBioChars)
	}
	if !strings.HasPrefix(bio, "Summary\nlorem lorem") {
		t.Errorf("bio starts %q", bio[:40])
	}
}

// writePDF writes a one-page PDF with one text object per line.
func writePDF(t *testing.T, lines ...string) string {
	t.Helper()
	escape := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
	var content bytes.Buffer
	for i, line := range lines {
		fmt.Fprintf(&content, "BT /F1 12 Tf 72 %d Td (%s) Tj ET\n", 720-16*i, escape.Replace(line))
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
	}

	var doc bytes.Buffer
	doc.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = doc.Len()
		fmt.Fprintf(&doc, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := doc.Len()
	fmt.Fprintf(&doc, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&doc, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&doc, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), "bio.pdf")
	if err := os.WriteFile(path, doc.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Jane Doe", "Jane Doe"},
		{"<b>Jane</b> Doe", "Jane Doe"},
		{`<script>alert("x")</script>Bio`, "Bio"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"O'Brien", "O'Brien"},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCollapseBlankLines(t *testing.T) {
	in := "\n  Jane Doe  \n\n\n\nReading specialist\r\n  \nSince 2010\n"
	want := "Jane Doe\n\nReading specialist\n\nSince 2010"
	if got := collapseBlankLines(in); got != want {
		t.Errorf("collapseBlankLines = %q, want %q", got, want)
	}
}
