// Package intake turns files and free text supplied by a provider into field
// values: pictures become data URIs, PDF résumés become bio text, and markup
// is stripped from text fields. It does not validate; the profile package
// decides whether a value is acceptable.
package intake

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kalambet/provform/internal/profile"
)

// readLimit is one byte over the picture cap, so oversized files still
// produce a data URI that fails the size check instead of being read whole.
const readLimit = profile.MaxPictureBytes + 1

// maxBioChars caps text extracted from a PDF.
const maxBioChars = 4000

// PictureFromFile reads an image file and returns it as a data URI.
func PictureFromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening picture: %w", err)
	}
	defer f.Close()
	return PictureFromReader(f, filepath.Base(path))
}

// PictureFromReader encodes r as a data URI. The media type is sniffed from
// the content, falling back to name's extension.
func PictureFromReader(r io.Reader, name string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, readLimit))
	if err != nil {
		return "", fmt.Errorf("reading picture: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("picture %s is empty", name)
	}

	mediaType := sniffMediaType(data, name)
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func sniffMediaType(data []byte, name string) string {
	detected := http.DetectContentType(data)
	if detected == "application/octet-stream" || strings.HasPrefix(detected, "text/") {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
			detected = byExt
		}
	}
	if mt, _, err := mime.ParseMediaType(detected); err == nil {
		return mt
	}
	return detected
}

// BioFromPDF extracts the plain text of a PDF for use as a bio.
func BioFromPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	textReader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	text := CleanText(collapseBlankLines(buf.String()))
	if runes := []rune(text); len(runes) > maxBioChars {
		text = strings.TrimSpace(string(runes[:maxBioChars]))
	}
	return text, nil
}

func collapseBlankLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// CleanText removes any markup from s and decodes entities, leaving the text
// a user would see.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return html.UnescapeString(textPolicy.Sanitize(s))
}
