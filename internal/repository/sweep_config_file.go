package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// sweepConfigDocument is the YAML form of the sweep criteria:
//
//	folder: https://drive.google.com/drive/folders/<id>
//	cutoff: "2023-06"
//	min_size: 10485760
//	owner: someone@example.com
//	recursive: false
type sweepConfigDocument struct {
	Folder    string `yaml:"folder"`
	Cutoff    string `yaml:"cutoff"`
	MinSize   *int64 `yaml:"min_size"`
	Owner     string `yaml:"owner"`
	Recursive bool   `yaml:"recursive"`
}

// SweepConfigFile reads the sweep criteria from a YAML file on every Load, so
// edits apply to the next run.
type SweepConfigFile struct {
	path string
}

func NewSweepConfigFile(path string) *SweepConfigFile {
	return &SweepConfigFile{path: path}
}

func (f *SweepConfigFile) Load(_ context.Context) (model.SweepConfig, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.SweepConfig{}, &model.ConfigurationError{
			Field:  "source",
			Reason: fmt.Sprintf("configuration file %s does not exist", f.path),
			Err:    err,
		}
	}
	if err != nil {
		return model.SweepConfig{}, fmt.Errorf("read sweep config: %w", err)
	}

	return ParseSweepConfig(data)
}

// ParseSweepConfig decodes and validates a YAML sweep configuration.
func ParseSweepConfig(data []byte) (model.SweepConfig, error) {
	var doc sweepConfigDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.SweepConfig{}, &model.ConfigurationError{Field: "source", Reason: "invalid YAML", Err: err}
	}

	year, month, err := model.ParseCutoff(doc.Cutoff)
	if err != nil {
		return model.SweepConfig{}, err
	}

	cfg := model.SweepConfig{
		FolderRef:    doc.Folder,
		CutoffYear:   year,
		CutoffMonth:  month,
		MinSizeBytes: doc.MinSize,
		OwnerEmail:   doc.Owner,
		Recursive:    doc.Recursive,
	}
	return cfg, cfg.Validate()
}
