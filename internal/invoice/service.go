package invoice

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/nota-fiscal/internal/extraction"
)

// ErrNotPDF is returned when uploaded data does not carry a PDF header
var ErrNotPDF = extraction.ErrNotPDF

// Extractor extracts invoice fields from a PDF on disk
type Extractor interface {
	Extract(path string) (*extraction.Result, error)
}

// IDGenerator generates unique IDs for invoices
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles invoice operations
type Service struct {
	db          DB
	extractor   Extractor
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor Extractor, storage Storage) *Service {
	return NewServiceWithDeps(db, extractor, storage, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor Extractor, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "nota-fiscal"
	}
	if ext != ".pdf" {
		ext = ".pdf"
	}

	return base + ext
}

// ProcessInvoice stores an uploaded nota fiscal, extracts its fields and saves it
func (s *Service) ProcessInvoice(filename string, data []byte) (*Invoice, error) {
	if !extraction.IsPDF(data) {
		return nil, fmt.Errorf("%w: %s", ErrNotPDF, filename)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	result, err := s.extractor.Extract(s.storage.Path(savedPath))
	if err != nil {
		slog.Error("Failed to extract invoice",
			"filename", filename,
			"file_size", len(data),
			"error", err,
		)
		s.deleteFile(savedPath)
		return nil, fmt.Errorf("extracting invoice: %w", err)
	}

	invoice := &Invoice{
		ID:               id,
		Filename:         savedPath,
		OriginalFilename: filename,
		Result:           *result,
		CreatedAt:        now,
	}

	if err := s.db.SaveInvoice(invoice); err != nil {
		s.deleteFile(savedPath)
		return nil, fmt.Errorf("saving invoice to database: %w", err)
	}

	slog.Info("Processed invoice", "id", id, "filename", filename, "items", len(result.Items))
	return invoice, nil
}

// deleteFile removes a stored file that is no longer referenced
func (s *Service) deleteFile(filename string) {
	if err := s.storage.Delete(filename); err != nil {
		slog.Warn("Failed to delete file", "filename", filename, "error", err)
	}
}

// ExtractInvoice extracts the fields of a nota fiscal without keeping it
func (s *Service) ExtractInvoice(filename string, data []byte) (*extraction.Result, error) {
	if !extraction.IsPDF(data) {
		return nil, fmt.Errorf("%w: %s", ErrNotPDF, filename)
	}

	savedPath, err := s.storage.Save(fmt.Sprintf("tmp_%s.pdf", s.idGenerator.Generate()), data)
	if err != nil {
		return nil, fmt.Errorf("saving temporary file: %w", err)
	}
	defer s.deleteFile(savedPath)

	result, err := s.extractor.Extract(s.storage.Path(savedPath))
	if err != nil {
		return nil, fmt.Errorf("extracting invoice: %w", err)
	}
	return result, nil
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(id string) (*Invoice, error) {
	invoice, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return invoice, nil
}

// ListInvoices returns all invoices, newest first
func (s *Service) ListInvoices() ([]*Invoice, error) {
	invoices, err := s.db.ListInvoices()
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].CreatedAt.After(invoices[j].CreatedAt)
	})
	return invoices, nil
}

// DeleteInvoice removes an invoice and its file
func (s *Service) DeleteInvoice(id string) error {
	invoice, err := s.db.GetInvoice(id)
	if err != nil {
		return fmt.Errorf("getting invoice for deletion: %w", err)
	}

	if err := s.storage.Delete(invoice.Filename); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete file", "filename", invoice.Filename, "error", err)
	}

	if err := s.db.DeleteInvoice(id); err != nil {
		return fmt.Errorf("deleting invoice from database: %w", err)
	}
	return nil
}

// GetInvoiceFile retrieves the stored PDF of an invoice
func (s *Service) GetInvoiceFile(id string) ([]byte, error) {
	invoice, err := s.db.GetInvoice(id)
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}

	data, err := s.storage.Get(invoice.Filename)
	if err != nil {
		return nil, fmt.Errorf("getting invoice file: %w", err)
	}
	return data, nil
}
