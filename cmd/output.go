package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/faceid/internal/embedding"
)

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// faceSource is the --image / --embedding pair shared by identify and enroll.
type faceSource struct {
	imagePath     string
	embeddingPath string
}

func (f faceSource) validate() error {
	switch {
	case f.imagePath == "" && f.embeddingPath == "":
		return errors.New("one of --image or --embedding is required")
	case f.imagePath != "" && f.embeddingPath != "":
		return errors.New("--image and --embedding are mutually exclusive")
	}
	return nil
}

// readImage returns the image bytes, or nil when an embedding file was given.
func (f faceSource) readImage() ([]byte, error) {
	if f.imagePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(f.imagePath)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// readEmbedding reads a JSON array of numbers. Validation is left to the
// matcher so the CLI reports the same errors as the API.
func (f faceSource) readEmbedding() (embedding.Vector, error) {
	data, err := os.ReadFile(f.embeddingPath)
	if err != nil {
		return nil, fmt.Errorf("reading embedding: %w", err)
	}
	var v embedding.Vector
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("embedding file must hold a JSON array of numbers: %w", err)
	}
	return v, nil
}
