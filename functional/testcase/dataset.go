package testcase

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// DatasetBuilder collects the workflow spec files written to the data directory.
type DatasetBuilder struct {
	files map[string][]byte
	order []string
}

// NewDatasetBuilder creates an empty dataset
func NewDatasetBuilder() *DatasetBuilder {
	return &DatasetBuilder{files: make(map[string][]byte)}
}

// WorkflowSpec is a dataset entry under construction
type WorkflowSpec struct {
	ID          string           `json:"workflow_id,omitempty"`
	Name        string           `json:"workflow_name,omitempty"`
	Requirement string           `json:"workflow_requirement"`
	Inputs      []Field          `json:"workflow_inputs,omitempty"`
	Outputs     []Field          `json:"workflow_outputs,omitempty"`
	TestInputs  []map[string]any `json:"test_inputs,omitempty"`
}

// Field is a declared workflow input or output
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// WithInput declares a string input
func (s *WorkflowSpec) WithInput(name string) *WorkflowSpec {
	s.Inputs = append(s.Inputs, Field{Name: name, Type: "string"})
	return s
}

// WithOutput declares a string output
func (s *WorkflowSpec) WithOutput(name string) *WorkflowSpec {
	s.Outputs = append(s.Outputs, Field{Name: name, Type: "string"})
	return s
}

// WithTestInput adds an explicit input set
func (s *WorkflowSpec) WithTestInput(values map[string]any) *WorkflowSpec {
	s.TestInputs = append(s.TestInputs, values)
	return s
}

// Workflow adds a spec file named after id and lets configure refine it.
func (b *DatasetBuilder) Workflow(id, requirement string, configure ...func(*WorkflowSpec)) *DatasetBuilder {
	spec := &WorkflowSpec{
		ID:          id,
		Name:        id,
		Requirement: requirement,
	}
	for _, c := range configure {
		c(spec)
	}

	data, err := yaml.Marshal(spec)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal workflow spec %s: %v", id, err))
	}
	return b.Raw(id+".yaml", string(data))
}

// Raw adds a spec file with verbatim content, for malformed entries.
func (b *DatasetBuilder) Raw(name, content string) *DatasetBuilder {
	if _, ok := b.files[name]; !ok {
		b.order = append(b.order, name)
	}
	b.files[name] = []byte(content)
	return b
}

// Len returns the number of files in the dataset
func (b *DatasetBuilder) Len() int {
	return len(b.order)
}

// Write creates every file in dir
func (b *DatasetBuilder) Write(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	for _, name := range b.order {
		if err := os.WriteFile(filepath.Join(dir, name), b.files[name], 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}
