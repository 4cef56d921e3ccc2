package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brightpath/stagegate/model"
)

// Loader scans directories for YAML workflow definition files and parses them.
type Loader struct{}

// NewLoader creates a new workflow Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// workflowFile is the on-disk shape of a definition file. A file holds one
// workflow.
type workflowFile struct {
	Workflow model.Workflow `yaml:"workflow"`
}

// LoadAll recursively scans directories for *.yaml and *.yml files and parses
// each into a Workflow.
func (l *Loader) LoadAll(directories []string) ([]model.Workflow, error) {
	var workflows []model.Workflow

	for _, dir := range directories {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".yaml" && ext != ".yml" {
				return nil
			}

			wf, err := l.LoadFile(path)
			if err != nil {
				return fmt.Errorf("loading %s: %w", path, err)
			}
			workflows = append(workflows, wf)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning directory %s: %w", dir, err)
		}
	}

	return workflows, nil
}

// LoadFile loads and parses a single YAML workflow file. Stage and
// requirement back-references are filled in from their position in the file
// so definition authors don't repeat them.
func (l *Loader) LoadFile(path string) (model.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Workflow{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var file workflowFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return model.Workflow{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	wf := file.Workflow
	for i := range wf.Stages {
		wf.Stages[i].WorkflowID = wf.ID
		for j := range wf.Stages[i].Requirements {
			wf.Stages[i].Requirements[j].StageID = wf.Stages[i].ID
		}
	}

	return wf, nil
}
