// Package yamlsyntax checks YAML documents and turns yaml.v3 errors into
// positioned syntax errors shared by config files and definition files.
package yamlsyntax

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Error is a YAML error with the first position yaml.v3 reported.
// Line is 0 when the error carries no position.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return e.Message
}

// Locate converts a yaml.v3 error into an *Error. yaml.v3 reports lines
// only, so Column is 1 whenever a line is known. For a *yaml.TypeError
// the first entry wins.
func Locate(err error) *Error {
	msg := err.Error()
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
		msg = typeErr.Errors[0]
	}
	msg = strings.TrimPrefix(msg, "yaml: ")

	var line int
	if n, _ := fmt.Sscanf(msg, "line %d:", &line); n == 1 && line > 0 {
		if _, rest, ok := strings.Cut(msg, ": "); ok {
			msg = rest
		}
		return &Error{Line: line, Column: 1, Message: msg}
	}
	return &Error{Message: msg}
}

// Check parses data into a document node. Blank input yields a nil node
// and no error.
func Check(data []byte) (*yaml.Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, Locate(err)
	}
	return &doc, nil
}
