package invoice

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zombor/nota-fiscal/internal/extraction"
)

// Uploaded notas larger than this are rejected
const maxUploadSize = int64(20 << 20) // 20MB

// corsError writes a plain text error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body of the form {"error": message}
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// readUpload reads the "file" field of a multipart upload.
// It writes the error response itself and returns false on failure.
func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, "File is too large. Maximum size is 20MB.", http.StatusRequestEntityTooLarge)
			return "", nil, false
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return "", nil, false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a PDF to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return "", nil, false
	}

	return header.Filename, data, true
}

// handleUploadInvoice stores and extracts an uploaded nota fiscal
func (s *Server) handleUploadInvoice(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}

	invoice, err := s.service.ProcessInvoice(filename, data)
	if err != nil {
		slog.Error("Error processing invoice", "filename", filename, "error", err)
		uploadError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, invoice)
}

// handleExtract extracts an uploaded nota fiscal without storing it
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}

	result, err := s.service.ExtractInvoice(filename, data)
	if err != nil {
		slog.Error("Error extracting invoice", "filename", filename, "error", err)
		uploadError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListInvoices returns a list of all invoices
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.service.ListInvoices()
	if err != nil {
		slog.Error("Error listing invoices", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, invoices)
}

// handleGetInvoice returns a single invoice
func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := s.service.GetInvoice(r.PathValue("id"))
	if err != nil {
		lookupError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, invoice)
}

// handleGetInvoiceFile returns the stored PDF for an invoice
func (s *Server) handleGetInvoiceFile(w http.ResponseWriter, r *http.Request) {
	data, err := s.service.GetInvoiceFile(r.PathValue("id"))
	if err != nil {
		lookupError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Write(data)
}

// handleDeleteInvoice deletes an invoice
func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteInvoice(r.PathValue("id")); err != nil {
		lookupError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// uploadError maps a failure to process an uploaded document to a response.
// Documents that are not PDFs or cannot be read are the client's fault.
func uploadError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotPDF) || errors.Is(err, extraction.ErrRender) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	jsonError(w, "Internal server error", http.StatusInternalServerError)
}

// lookupError maps a service error for a single invoice to a response
func lookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		corsError(w, "Invoice not found", http.StatusNotFound)
		return
	}
	slog.Error("Error looking up invoice", "error", err)
	corsError(w, "Internal server error", http.StatusInternalServerError)
}
