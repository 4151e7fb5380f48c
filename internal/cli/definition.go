package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ariel-frischer/orchestra/internal/definition"
	clierrors "github.com/ariel-frischer/orchestra/internal/errors"
	"github.com/ariel-frischer/orchestra/internal/orchestration"
)

// validateFileArg checks that path names a regular file.
func validateFileArg(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return clierrors.MissingDefinitionFile(path)
		}
		return clierrors.WrapWithMessage(err, clierrors.Runtime, "accessing file")
	}
	if info.IsDir() {
		return clierrors.NewArgumentError(fmt.Sprintf("expected file, got directory: %s", path))
	}
	return nil
}

// loadDefinition parses, validates and builds the orchestration in path.
// The orchestration name is remembered for the history entry.
func (o *Options) loadDefinition(path string) (*orchestration.Orchestration, *definition.ParseResult, error) {
	if err := validateFileArg(path); err != nil {
		return nil, nil, err
	}

	orch, result, err := definition.LoadFile(path)
	if err != nil {
		var parseErr *definition.ParseError
		if result == nil && !errors.As(err, &parseErr) {
			return nil, nil, clierrors.Wrap(err, clierrors.Runtime)
		}
		return nil, result, clierrors.InvalidDefinition(path, err)
	}

	o.orchestration = orch.Name
	if o.logger != nil {
		o.logger.Debug("definition loaded", "path", path, "orchestration", orch.Name, "steps", orch.Len())
	}
	return orch, result, nil
}

// userParameters lists the run parameters orch expects, sorted.
func userParameters(orch *orchestration.Orchestration) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range orch.Steps() {
		for _, name := range s.UserParameters() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
