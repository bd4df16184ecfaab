package helper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// NewDocumentID returns a random id carrying the original file extension, e.g. "<uuid>.pdf".
func NewDocumentID(filename string) (string, error) {
	id, err := GenerateUUID()
	if err != nil {
		return "", err
	}
	return id + strings.ToLower(filepath.Ext(filename)), nil
}

// IsDocumentID reports whether name has the shape NewDocumentID produces.
func IsDocumentID(name string) bool {
	_, err := uuid.Parse(strings.TrimSuffix(name, filepath.Ext(name)))
	return err == nil
}

// CreateFolder creates path and any missing parents.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
	}
	fmt.Println(string(b))
}
