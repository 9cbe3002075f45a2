package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/report"
	consts "github.com/khanhnv2901/idprecon/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
	"github.com/khanhnv2901/idprecon/internal/shared/security"
)

// ReportRepository stores scan reports as files under one output directory.
type ReportRepository struct {
	outputDir string
	mu        sync.Mutex
}

// NewReportRepository creates the output directory if needed.
func NewReportRepository(outputDir string) (*ReportRepository, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("%w: output directory cannot be empty", sharedErrors.ErrConfiguration)
	}

	if err := os.MkdirAll(outputDir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &ReportRepository{
		outputDir: outputDir,
	}, nil
}

// OutputDir returns the directory reports are written to.
func (r *ReportRepository) OutputDir() string {
	return r.outputDir
}

// Save renders rep in every format and writes each file atomically. It
// returns the written paths in format order.
func (r *ReportRepository) Save(ctx context.Context, rep scan.ScanReport, formats []report.Format) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		if err := ctx.Err(); err != nil {
			return paths, err
		}

		data, err := report.Render(rep, format)
		if err != nil {
			return paths, fmt.Errorf("failed to render %s report: %w", format, err)
		}

		path, err := security.ResolveWithin(r.outputDir, fileName(rep.Metadata, format))
		if err != nil {
			return paths, fmt.Errorf("invalid report path: %w", err)
		}

		if err := writeAtomic(path, data); err != nil {
			return paths, fmt.Errorf("failed to save %s report: %w", format, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}

// Load reads a JSON report back.
func (r *ReportRepository) Load(ctx context.Context, name string) (scan.ScanReport, error) {
	if err := security.ValidateFileName(name); err != nil {
		return scan.ScanReport{}, fmt.Errorf("invalid report name: %w", err)
	}
	path, err := security.ResolveWithin(r.outputDir, name)
	if err != nil {
		return scan.ScanReport{}, fmt.Errorf("invalid report path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return scan.ScanReport{}, fmt.Errorf("failed to read report: %w", err)
	}

	var rep scan.ScanReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return scan.ScanReport{}, fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	return rep, nil
}

// List returns the JSON report files in the output directory, oldest first.
func (r *ReportRepository) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "idprecon_scan_") || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	return names, nil
}

// Helper methods

func fileName(meta scan.Metadata, format report.Format) string {
	domain := meta.TargetDomain
	if domain == "" {
		domain = "unknown"
	}
	domain = security.SanitizeFileComponent(domain)
	stamp := meta.ScanStart.Format("20060102_150405")

	kind := "scan"
	if format == report.FormatText {
		kind = "summary"
	}
	return fmt.Sprintf("idprecon_%s_%s_%s.%s", kind, domain, stamp, format.Extension())
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, consts.DefaultFilePerm); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return nil
}
