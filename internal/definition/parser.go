package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ariel-frischer/orchestra/internal/yamlsyntax"
	"gopkg.in/yaml.v3"
)

// Format is a definition file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from the file extension; anything but
// .json is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ParseResult contains the parsed document and source location information.
type ParseResult struct {
	Path     string
	Document *Document
	// NodeInfos maps a path such as "orchestration.steps[0].id" to its
	// location. Empty for JSON input.
	NodeInfos map[string]NodeInfo
}

// NodeInfo stores source location information for a YAML node.
type NodeInfo struct {
	Line   int
	Column int
}

// Locate returns the location of path, walking up to the closest parent
// path that has one.
func (r *ParseResult) Locate(path string) NodeInfo {
	for path != "" {
		if info, ok := r.NodeInfos[path]; ok {
			return info
		}
		i := strings.LastIndexAny(path, ".[")
		if i < 0 {
			break
		}
		path = path[:i]
	}
	return NodeInfo{}
}

// ParseError represents an error during parsing with location information.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// ParseFile parses a definition file, choosing the format by extension.
func ParseFile(path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition file: %w", err)
	}

	result, err := ParseBytes(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	result.Path = path
	return result, nil
}

// ParseBytes parses a definition document in the given format.
func ParseBytes(data []byte, format Format) (*ParseResult, error) {
	if format == FormatJSON {
		return parseJSON(data)
	}
	return parseYAML(data)
}

func parseYAML(data []byte) (*ParseResult, error) {
	root, err := yamlsyntax.Check(data)
	if err != nil {
		return nil, yamlParseError(err)
	}
	if root == nil || root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &ParseError{Message: "empty document"}
	}
	if root.Content[0].Kind != yaml.MappingNode {
		n := root.Content[0]
		return nil, &ParseError{Line: n.Line, Column: n.Column, Message: "expected mapping node at root"}
	}

	result := &ParseResult{
		Document:  &Document{},
		NodeInfos: make(map[string]NodeInfo),
	}
	recordNodes(root.Content[0], "", result.NodeInfos)

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(result.Document); err != nil {
		return nil, yamlParseError(err)
	}
	return result, nil
}

// recordNodes stores the location of every node below n, keyed by its path.
func recordNodes(n *yaml.Node, path string, infos map[string]NodeInfo) {
	if path != "" {
		infos[path] = NodeInfo{Line: n.Line, Column: n.Column}
	}
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			if path != "" {
				key = path + "." + key
			}
			recordNodes(n.Content[i+1], key, infos)
		}
	case yaml.SequenceNode:
		for i, item := range n.Content {
			recordNodes(item, path+"["+strconv.Itoa(i)+"]", infos)
		}
	}
}

// yamlParseError converts a yaml.v3 error into a *ParseError, keeping the
// first reported line.
func yamlParseError(err error) error {
	var loc *yamlsyntax.Error
	if !errors.As(err, &loc) {
		loc = yamlsyntax.Locate(err)
	}
	return &ParseError{Line: loc.Line, Column: loc.Column, Message: loc.Message}
}

func parseJSON(data []byte) (*ParseResult, error) {
	result := &ParseResult{
		Document:  &Document{},
		NodeInfos: make(map[string]NodeInfo),
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(result.Document); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			line, col := position(data, syntaxErr.Offset)
			return nil, &ParseError{Line: line, Column: col, Message: syntaxErr.Error()}
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			line, col := position(data, typeErr.Offset)
			return nil, &ParseError{Line: line, Column: col, Message: typeErr.Error()}
		}
		return nil, &ParseError{Message: err.Error()}
	}
	result.Document.normalizeNumbers()
	return result, nil
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (line, column int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	before := data[:offset]
	line = bytes.Count(before, []byte("\n")) + 1
	column = int(offset) - bytes.LastIndexByte(before, '\n')
	return line, column
}
