package invoice

import (
	"time"

	"github.com/zombor/nota-fiscal/internal/extraction"
)

// Invoice is an uploaded nota fiscal together with its extracted fields
type Invoice struct {
	ID               string `json:"id"`
	Filename         string `json:"filename"` // Name of the stored file
	OriginalFilename string `json:"original_filename"`
	extraction.Result
	CreatedAt time.Time `json:"created_at"`
}
