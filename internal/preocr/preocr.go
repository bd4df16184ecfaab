// Package preocr decides, from the file extension alone, whether a file needs
// optical text recovery before its text can be ingested.
package preocr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"document-qa/internal/models"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".bmp":  true,
}

// text-bearing formats: plain text, word-processor, spreadsheet, presentation
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".html": true,
	".htm":  true,
	".docx": true,
	".pptx": true,
	".xlsx": true,
	".xls":  true,
}

// Classify returns the PreOCR decision for path. It never reads file content.
func Classify(path string) (models.PreOCRDecision, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.PreOCRDecision{}, fmt.Errorf("%w: %s", models.ErrNotFound, path)
		}
		return models.PreOCRDecision{}, fmt.Errorf("%w: %s: %v", models.ErrReadError, path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		return models.PreOCRDecision{NeedsOCR: true, Confidence: 1.0, Reason: models.ReasonImageFile}, nil
	case textExtensions[ext]:
		return models.PreOCRDecision{NeedsOCR: false, Confidence: 0.95, Reason: models.ReasonOfficeWithText}, nil
	case ext == ".pdf":
		// optimistic: no text-density check
		return models.PreOCRDecision{NeedsOCR: false, Confidence: 0.8, Reason: models.ReasonPDFAssumedDigital}, nil
	default:
		return models.PreOCRDecision{NeedsOCR: true, Confidence: 0.5, Reason: models.ReasonUnknownFormat}, nil
	}
}

// Classifier adapts Classify to the ingestion orchestrator.
type Classifier struct{}

func (Classifier) Classify(path string) (models.PreOCRDecision, error) {
	return Classify(path)
}
