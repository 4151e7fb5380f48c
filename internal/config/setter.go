package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SetValue validates value against the key schema and writes it into the
// YAML config file at path, creating the file when missing. Comments and
// the order of existing keys are preserved.
func SetValue(path, key, value string) (ParsedValue, error) {
	parsed, err := ValidateValue(key, value)
	if err != nil {
		return ParsedValue{}, err
	}

	doc, err := readDocument(path)
	if err != nil {
		return ParsedValue{}, err
	}

	var valueNode yaml.Node
	if err := valueNode.Encode(parsed.Parsed); err != nil {
		return ParsedValue{}, fmt.Errorf("encoding %s: %w", key, err)
	}

	root := doc.Content[0]
	replaced := false
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			valueNode.LineComment = root.Content[i+1].LineComment
			root.Content[i+1] = &valueNode
			replaced = true
			break
		}
	}
	if !replaced {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&valueNode,
		)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return ParsedValue{}, fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ParsedValue{}, fmt.Errorf("creating config directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ParsedValue{}, fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return ParsedValue{}, fmt.Errorf("renaming config: %w", err)
	}
	return parsed, nil
}

// readDocument loads path as a YAML document whose root is a mapping.
func readDocument(path string) (*yaml.Node, error) {
	empty := &yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	doc, err := decodeYAML(path, data)
	if err != nil {
		return nil, err
	}
	if doc == nil || len(doc.Content) == 0 {
		return empty, nil
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return nil, &ValidationError{FilePath: path, Message: "config root must be a mapping"}
	}
	return doc, nil
}
