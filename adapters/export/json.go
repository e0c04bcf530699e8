// Package export writes pipeline results to files for downstream
// consumers: a JSON document for tooling and an Excel workbook for
// license administrators.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"

	"license-recon/core/pipeline"
	apperrors "license-recon/internal/errors"
)

// WriteJSON writes the full run result as indented JSON.
func WriteJSON(res *pipeline.Result, path string) error {
	if res == nil {
		return apperrors.Export("nothing to export", nil)
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return apperrors.Export("failed to encode result", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.Export("failed to create output directory", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.Export("failed to write JSON output", err)
	}
	return nil
}

// ReadJSON loads a previously written run result so it can be
// re-rendered without re-running the pipeline.
func ReadJSON(path string) (*pipeline.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Export("failed to read result file", err)
	}
	var res pipeline.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, apperrors.Export("failed to decode result file", err)
	}
	return &res, nil
}
