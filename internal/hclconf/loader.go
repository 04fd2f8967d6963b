package hclconf

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/dwasgo/internal/config"
	"github.com/vk/dwasgo/internal/ctxlog"
	"github.com/vk/dwasgo/internal/fsutil"
)

// Extension is the file suffix workflow files are discovered by.
const Extension = ".hcl"

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL workflow loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every workflow file found under the given paths and merges
// the declared steps and groups into one model. A path may be a directory
// (searched recursively) or a single file.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := l.findWorkflowFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s workflow files found under %v", Extension, paths)
	}
	logger.Debug("Discovered workflow files.", "count", len(files))

	model := &config.Model{}
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing workflow file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("decoding workflow file %s: %w", file, diags)
		}

		for _, step := range root.Steps {
			translated, err := l.translateStep(step)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", file, err)
			}
			model.Steps = append(model.Steps, translated)
		}
		for _, group := range root.Groups {
			model.Groups = append(model.Groups, l.translateGroup(group))
		}
	}

	logger.Debug("HCL loading complete.", "steps", len(model.Steps), "groups", len(model.Groups))
	return model, nil
}

// findWorkflowFiles flattens the given paths into a deduplicated list of
// workflow files. Nonexistent paths are not an error.
func (l *Loader) findWorkflowFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		found, err := fsutil.FindFilesByExtension(path, Extension)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("accessing path %s: %w", path, err)
		}
		for _, f := range found {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			all = append(all, f)
		}
	}
	return all, nil
}
