package extraction

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnknownRenderer is returned by NewRenderer for an unsupported renderer name
	ErrUnknownRenderer = errors.New("unknown renderer")

	// ErrNotPDF is returned when a document does not carry a PDF header
	ErrNotPDF = errors.New("file is not a PDF")
)

// PDF readers accept the header anywhere in the first 1024 bytes
const pdfHeaderWindow = 1024

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether data carries a PDF header
func IsPDF(data []byte) bool {
	if len(data) > pdfHeaderWindow {
		data = data[:pdfHeaderWindow]
	}
	return bytes.Contains(data, pdfMagic)
}

// checkPDF fails with ErrNotPDF unless the file at path starts like a PDF.
// MuPDF also opens images and plain text, so this runs before any renderer.
func checkPDF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	header := make([]byte, pdfHeaderWindow)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading PDF header: %w", err)
	}
	if !IsPDF(header[:n]) {
		return fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	return nil
}

// NewRenderer returns the renderer registered under name: "mupdf" or "pdf"
func NewRenderer(name string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mupdf":
		return &MuPDF{}, nil
	case "pdf":
		return &PlainText{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRenderer, name)
	}
}

// MuPDF renders PDF text with MuPDF through go-fitz
type MuPDF struct{}

// Text implements Renderer
func (m *MuPDF) Text(path string) (string, error) {
	if err := checkPDF(path); err != nil {
		return "", err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	var text strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("extracting text from page %d: %w", i+1, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	return text.String(), nil
}

// PlainText renders PDF text with the pure Go ledongthuc/pdf reader
type PlainText struct{}

// Text implements Renderer
func (p *PlainText) Text(path string) (string, error) {
	if err := checkPDF(path); err != nil {
		return "", err
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var text strings.Builder
	// Pages are 1-indexed
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if !page.V.IsNull() {
			pageText, err := page.GetPlainText(nil)
			if err != nil {
				return "", fmt.Errorf("extracting text from page %d: %w", i, err)
			}
			text.WriteString(pageText)
		}
		text.WriteString("\n")
	}

	return text.String(), nil
}
