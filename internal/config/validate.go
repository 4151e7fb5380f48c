package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/ariel-frischer/orchestra/internal/yamlsyntax"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ValidationError reports a config file that does not parse, or a key
// whose merged value breaks its constraint.
type ValidationError struct {
	FilePath string
	Line     int
	Column   int
	// Key is the config key at fault; Source is the layer that set it.
	Key     string
	Source  ConfigSource
	Message string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	case e.Key != "" && e.Source != "":
		return fmt.Sprintf("%s: %s (set by %s config)", e.Key, e.Message, e.Source)
	case e.Key != "":
		return fmt.Sprintf("%s: %s", e.Key, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
	}
}

// checkYAMLFile reports a YAML syntax error in the file at path.
func checkYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return &ValidationError{FilePath: path, Message: "permission denied"}
		}
		return &ValidationError{FilePath: path, Message: err.Error()}
	}
	_, err = decodeYAML(path, data)
	return err
}

// decodeYAML parses data into a document node, nil for a blank file.
func decodeYAML(path string, data []byte) (*yaml.Node, error) {
	doc, err := yamlsyntax.Check(data)
	if err != nil {
		var loc *yamlsyntax.Error
		if errors.As(err, &loc) {
			return nil, &ValidationError{FilePath: path, Line: loc.Line, Column: loc.Column, Message: loc.Message}
		}
		return nil, &ValidationError{FilePath: path, Message: err.Error()}
	}
	return doc, nil
}

var (
	validateOnce sync.Once
	keyValidator *validator.Validate
)

// configValidator names fields by their koanf key.
func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		keyValidator = validator.New()
		keyValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("koanf")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return keyValidator
}

// validateValues checks the merged configuration and blames the first
// invalid key on the layer that set it.
func validateValues(cfg *Configuration, sources map[string]ConfigSource) error {
	if err := configValidator().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return err
		}
		fe := fieldErrs[0]
		return &ValidationError{
			Key:     fe.Field(),
			Source:  sources[fe.Field()],
			Message: describeConstraint(fe),
		}
	}

	if strings.ContainsAny(cfg.Shell, " \t") {
		return &ValidationError{
			Key:     "shell",
			Source:  sources["shell"],
			Message: "must be a single executable path without arguments",
		}
	}
	return nil
}

func describeConstraint(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or greater", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(fe.Param()), ", "))
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
