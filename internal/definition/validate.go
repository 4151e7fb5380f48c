package definition

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/ariel-frischer/orchestra/internal/orchestration"
	"github.com/go-playground/validator/v10"
)

// ValidationError represents a validation error with source location information.
type ValidationError struct {
	// Path is the document path, e.g. "orchestration.steps[2].parent_step_ids[0]".
	Path    string
	Line    int
	Column  int
	Message string
	// Err is the underlying domain error, if any.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, msg)
	}
	return msg
}

// Unwrap returns the underlying domain error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

var (
	validateOnce    sync.Once
	structValidator *validator.Validate
)

// fieldValidator returns a validator that names fields by their yaml tag,
// so failures map onto document paths.
func fieldValidator() *validator.Validate {
	validateOnce.Do(func() {
		structValidator = validator.New()
		structValidator.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return structValidator
}

// Validate checks a parsed document for structural correctness: field
// constraints, unique ids, resolvable references and valid output
// fetchers. Returns a slice of errors, empty if valid.
func Validate(r *ParseResult) []error {
	var errs []error

	errs = append(errs, validateFields(r)...)
	errs = append(errs, validateUniqueIDs(r)...)
	errs = append(errs, validateReferences(r)...)
	errs = append(errs, validatePatterns(r)...)

	return errs
}

// validateFields runs the struct tag constraints.
func validateFields(r *ParseResult) []error {
	err := fieldValidator().Struct(r.Document)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{&ValidationError{Message: err.Error()}}
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		// Namespace is "Document.<path>".
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		errs = append(errs, r.errorAt(path, formatValidationError(fe), nil))
	}
	return errs
}

// formatValidationError formats a validation error for a specific field.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// validateUniqueIDs checks that action ids and step ids are unique.
func validateUniqueIDs(r *ParseResult) []error {
	var errs []error

	actions := make(map[string]int)
	for i, a := range r.Document.Actions {
		if a.ID == "" {
			continue
		}
		if first, ok := actions[a.ID]; ok {
			errs = append(errs, r.errorAt(fmt.Sprintf("actions[%d].id", i),
				fmt.Sprintf("duplicate action id %q (first defined at actions[%d])", a.ID, first), nil))
			continue
		}
		actions[a.ID] = i
	}

	steps := make(map[string]int)
	for i, s := range r.Document.Orchestration.Steps {
		if s.ID == "" {
			continue
		}
		if first, ok := steps[s.ID]; ok {
			errs = append(errs, r.errorAt(fmt.Sprintf("orchestration.steps[%d].id", i),
				fmt.Sprintf("duplicate step id %q (first defined at steps[%d])", s.ID, first),
				&orchestration.DuplicateStepError{StepID: s.ID}))
			continue
		}
		steps[s.ID] = i
	}

	return errs
}

// validateReferences checks that every action_id and parent_step_ids entry
// names something defined in the document.
func validateReferences(r *ParseResult) []error {
	var errs []error

	actions := make(map[string]bool, len(r.Document.Actions))
	for _, a := range r.Document.Actions {
		actions[a.ID] = true
	}
	steps := make(map[string]bool, len(r.Document.Orchestration.Steps))
	for _, s := range r.Document.Orchestration.Steps {
		steps[s.ID] = true
	}

	for i, s := range r.Document.Orchestration.Steps {
		prefix := fmt.Sprintf("orchestration.steps[%d]", i)
		if s.ActionID != "" && !actions[s.ActionID] {
			err := &orchestration.ReferenceNotFoundError{Kind: "action", ID: s.ActionID, Referrer: s.ID}
			errs = append(errs, r.errorAt(prefix+".action_id", err.Error(), err))
		}
		for j, pid := range s.ParentStepIDs {
			if !steps[pid] {
				err := &orchestration.ReferenceNotFoundError{Kind: "step", ID: pid, Referrer: s.ID}
				errs = append(errs, r.errorAt(fmt.Sprintf("%s.parent_step_ids[%d]", prefix, j), err.Error(), err))
			}
		}
	}

	return errs
}

// validatePatterns checks that every output fetcher compiles.
func validatePatterns(r *ParseResult) []error {
	var errs []error

	check := func(path string, pattern *string) {
		if pattern == nil {
			return
		}
		if _, err := regexp.Compile(*pattern); err != nil {
			errs = append(errs, r.errorAt(path, fmt.Sprintf("invalid regexp_fetch: %v", err), nil))
		}
	}
	for i, a := range r.Document.Actions {
		check(fmt.Sprintf("actions[%d].regexp_fetch", i), a.RegexpFetch)
	}
	for i, s := range r.Document.Orchestration.Steps {
		check(fmt.Sprintf("orchestration.steps[%d].regexp_fetch", i), s.RegexpFetch)
	}

	return errs
}

func (r *ParseResult) errorAt(path, message string, err error) *ValidationError {
	info := r.Locate(path)
	return &ValidationError{Path: path, Line: info.Line, Column: info.Column, Message: message, Err: err}
}

// Build validates the document and turns it into an orchestration. Errors
// raised while wiring the graph are located at the step they concern.
func Build(r *ParseResult) (*orchestration.Orchestration, error) {
	if errs := Validate(r); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	o, err := orchestration.Load(r.Document.Orchestration, r.Document.ActionMap())
	if err != nil {
		return nil, r.locate(err)
	}
	return o, nil
}

// locate wraps a domain error with the location of the step it names.
func (r *ParseResult) locate(err error) error {
	var stepID string
	var (
		ordering *orchestration.OrderingViolationError
		cycle    *orchestration.CycleError
		target   *orchestration.TargetSpecificationError
		ref      *orchestration.ReferenceNotFoundError
		dup      *orchestration.DuplicateStepError
	)
	switch {
	case errors.As(err, &ordering):
		stepID = ordering.Child
	case errors.As(err, &cycle) && len(cycle.Edges) > 0:
		stepID = cycle.Edges[0].To
	case errors.As(err, &target):
		stepID = target.StepID
	case errors.As(err, &ref):
		stepID = ref.Referrer
	case errors.As(err, &dup):
		stepID = dup.StepID
	}

	path := "orchestration"
	for i, s := range r.Document.Orchestration.Steps {
		if stepID != "" && s.ID == stepID {
			path = fmt.Sprintf("orchestration.steps[%d]", i)
			break
		}
	}
	return r.errorAt(path, err.Error(), err)
}

// LoadFile parses, validates and builds the orchestration in path.
func LoadFile(path string) (*orchestration.Orchestration, *ParseResult, error) {
	result, err := ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	o, err := Build(result)
	if err != nil {
		return nil, result, err
	}
	return o, result, nil
}
