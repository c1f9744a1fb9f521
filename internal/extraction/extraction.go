package extraction

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrRender wraps every failure to turn a document into text
var ErrRender = errors.New("rendering PDF text")

// Result contains the fields extracted from a nota fiscal
type Result struct {
	CompanyName      *string  `json:"company_name"`
	IssueDate        *string  `json:"issue_date"` // YYYY-MM-DD
	DueDate          *string  `json:"due_date"`   // YYYY-MM-DD
	TotalValue       *float64 `json:"total_value"`
	InstallmentCount int      `json:"installment_count"`
	Items            []string `json:"items"`
}

// Renderer turns a PDF document into plain text
type Renderer interface {
	// Text returns the text of every page in page order, each page followed by a newline
	Text(path string) (string, error)
}

// Extractor pulls invoice fields out of PDF documents
type Extractor struct {
	renderer Renderer
}

// NewExtractor creates a new Extractor backed by the given renderer
func NewExtractor(renderer Renderer) *Extractor {
	return &Extractor{renderer: renderer}
}

// Extract renders the PDF at path and parses the invoice fields from its text.
// Only rendering failures are returned; missing or malformed fields are left absent.
func (e *Extractor) Extract(path string) (*Result, error) {
	text, err := e.renderer.Text(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}

	result := Parse(text)
	slog.Debug("Extracted invoice fields",
		"path", path,
		"text_length", len(text),
		"items", len(result.Items),
	)
	return result, nil
}
