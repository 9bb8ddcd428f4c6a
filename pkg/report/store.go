package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mcpchecker/wfeval/pkg/util"
)

const (
	// Dir is the results directory under the output directory.
	Dir = "results"

	reportPrefix     = "comprehensive_evaluation_report_"
	reportTimeLayout = "20060102_150405.000000000"
)

// LayerFile returns the path of the result file for a layer.
func LayerFile(outputDir string, layer int, name string) string {
	return filepath.Join(outputDir, Dir, fmt.Sprintf("layer_%d_%s_evaluation.json", layer, name))
}

// ReportFile returns the path of the comprehensive report written at ts.
func ReportFile(outputDir string, ts time.Time) string {
	return filepath.Join(outputDir, Dir, reportPrefix+ts.Format(reportTimeLayout)+".json")
}

// WriteLayerResult persists r and returns the file path.
func WriteLayerResult(outputDir string, r *LayerResult) (string, error) {
	path := LayerFile(outputDir, r.Layer, r.Name)
	if err := util.WriteJSONAtomic(path, r); err != nil {
		return "", fmt.Errorf("failed to write layer %d results: %w", r.Layer, err)
	}
	return path, nil
}

// LoadLayerResult reads a layer result file. A missing file yields an error
// matching os.ErrNotExist.
func LoadLayerResult(path string) (*LayerResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layer results: %w", err)
	}

	r := &LayerResult{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse layer results '%s': %w", path, err)
	}
	return r, nil
}

// LoadLayer reads the persisted result of layer from outputDir, or returns
// nil, nil when the layer has no result file.
func LoadLayer(outputDir string, layer int, name string) (*LayerResult, error) {
	r, err := LoadLayerResult(LayerFile(outputDir, layer, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return r, err
}

// WriteReport persists rep under a name derived from its timestamp.
func WriteReport(outputDir string, rep *Report) (string, error) {
	ts := rep.Metadata.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	path := ReportFile(outputDir, ts)
	if err := util.WriteJSONAtomic(path, rep); err != nil {
		return "", fmt.Errorf("failed to write evaluation report: %w", err)
	}
	return path, nil
}

// Load reads a comprehensive report file.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}

	rep := &Report{}
	if err := json.Unmarshal(data, rep); err != nil {
		return nil, fmt.Errorf("failed to parse report JSON: %w", err)
	}
	return rep, nil
}

// LatestReport returns the path of the newest comprehensive report in outputDir.
func LatestReport(outputDir string) (string, error) {
	reports, err := filepath.Glob(filepath.Join(outputDir, Dir, reportPrefix+"*.json"))
	if err != nil {
		return "", err
	}
	if len(reports) == 0 {
		return "", fmt.Errorf("no evaluation report found in '%s'", filepath.Join(outputDir, Dir))
	}
	sort.Strings(reports)
	return reports[len(reports)-1], nil
}

// Files lists every result and report file in outputDir.
func Files(outputDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(outputDir, Dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Clean removes every result and report file from outputDir.
func Clean(outputDir string) error {
	files, err := Files(outputDir)
	if err != nil {
		return err
	}

	var errs []error
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
