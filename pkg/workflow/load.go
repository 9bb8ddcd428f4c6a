package workflow

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"
)

// Dataset is the result of loading a directory of workflow specs.
type Dataset struct {
	Specs   []*Spec
	Skipped []SkippedFile
}

// SkippedFile is a dataset file that could not be loaded.
type SkippedFile struct {
	File string
	Err  error
}

// IDs returns the spec ids in dataset order.
func (d *Dataset) IDs() []string {
	ids := make([]string, 0, len(d.Specs))
	for _, s := range d.Specs {
		ids = append(ids, s.ID)
	}
	return ids
}

// LoadDir loads every .json, .yaml and .yml file in dir, in file name order. Files
// that fail to parse or validate are reported in Skipped and do not abort the load.
// A missing directory or a directory with no dataset files is an error.
func LoadDir(dir string) (*Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory '%s': %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isDatasetFile(e.Name()) {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no workflow spec files found in '%s'", dir)
	}

	ds := &Dataset{}
	seen := make(map[string]string, len(files))
	for _, name := range files {
		spec, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			ds.Skipped = append(ds.Skipped, SkippedFile{File: name, Err: err})
			continue
		}
		if prev, dup := seen[spec.ID]; dup {
			ds.Skipped = append(ds.Skipped, SkippedFile{
				File: name,
				Err:  fmt.Errorf("duplicate workflow id '%s' (already loaded from %s)", spec.ID, prev),
			})
			continue
		}
		seen[spec.ID] = name
		ds.Specs = append(ds.Specs, spec)
	}

	return ds, nil
}

// LoadFile loads a single dataset entry.
func LoadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", path, err)
	}

	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse '%s': %w", path, err)
	}
	spec.SourceFile = filepath.Base(path)

	return spec, nil
}

// Parse decodes one dataset entry given as YAML or JSON. An entry without a
// workflow_id gets the hex MD5 of its canonical JSON as id.
func Parse(data []byte) (*Spec, error) {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, err
	}

	spec := &Spec{}
	if err := json.Unmarshal(jsonData, spec); err != nil {
		return nil, err
	}

	if spec.ID == "" {
		id, err := contentID(jsonData)
		if err != nil {
			return nil, err
		}
		spec.ID = id
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return spec, nil
}

func contentID(jsonData []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(jsonData, &raw); err != nil {
		return "", err
	}
	delete(raw, "source_file")

	// map keys are marshaled in sorted order
	canonical, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func isDatasetFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
