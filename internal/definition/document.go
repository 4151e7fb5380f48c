package definition

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/ariel-frischer/orchestra/internal/orchestration"
	"gopkg.in/yaml.v3"
)

// Document is the root of a definition file.
type Document struct {
	Actions       []ActionRecord                    `yaml:"actions,omitempty" json:"actions,omitempty" validate:"dive"`
	Orchestration orchestration.OrchestrationRecord `yaml:"orchestration" json:"orchestration"`
}

// ActionRecord is the serialized form of an action template.
type ActionRecord struct {
	ID             string         `yaml:"id" json:"id" validate:"required"`
	Name           string         `yaml:"name,omitempty" json:"name,omitempty"`
	Version        int            `yaml:"version,omitempty" json:"version,omitempty" validate:"gte=0"`
	Code           string         `yaml:"code" json:"code" validate:"required"`
	Parameters     map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	SystemKwargs   map[string]any `yaml:"system_kwargs,omitempty" json:"system_kwargs,omitempty"`
	ExpectedStdout *string        `yaml:"expected_stdout,omitempty" json:"expected_stdout,omitempty"`
	ExpectedStderr *string        `yaml:"expected_stderr,omitempty" json:"expected_stderr,omitempty"`
	ExpectedRC     *int           `yaml:"expected_rc,omitempty" json:"expected_rc,omitempty" validate:"omitempty,gte=0,lte=255"`
	RegexpFetch    *string        `yaml:"regexp_fetch,omitempty" json:"regexp_fetch,omitempty"`
	ErrorOnFetch   *bool          `yaml:"error_on_fetch,omitempty" json:"error_on_fetch,omitempty"`
}

// Action converts the record into an action template.
func (r ActionRecord) Action() *orchestration.Action {
	return &orchestration.Action{
		ID:             r.ID,
		Name:           r.Name,
		Version:        r.Version,
		Code:           r.Code,
		Parameters:     maps.Clone(r.Parameters),
		SystemKwargs:   maps.Clone(r.SystemKwargs),
		ExpectedStdout: r.ExpectedStdout,
		ExpectedStderr: r.ExpectedStderr,
		ExpectedRC:     r.ExpectedRC,
		RegexpFetch:    r.RegexpFetch,
		ErrorOnFetch:   r.ErrorOnFetch,
	}
}

func actionRecord(a *orchestration.Action) ActionRecord {
	return ActionRecord{
		ID:             a.ID,
		Name:           a.Name,
		Version:        a.Version,
		Code:           a.Code,
		Parameters:     maps.Clone(a.Parameters),
		SystemKwargs:   maps.Clone(a.SystemKwargs),
		ExpectedStdout: a.ExpectedStdout,
		ExpectedStderr: a.ExpectedStderr,
		ExpectedRC:     a.ExpectedRC,
		RegexpFetch:    a.RegexpFetch,
		ErrorOnFetch:   a.ErrorOnFetch,
	}
}

// FromOrchestration builds the document that reproduces o: the actions
// used by its steps, in first-use order, and its record.
func FromOrchestration(o *orchestration.Orchestration) *Document {
	doc := &Document{Orchestration: o.Record()}
	seen := make(map[string]bool)
	for _, s := range o.Steps() {
		a := s.Action()
		if a == nil || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		doc.Actions = append(doc.Actions, actionRecord(a))
	}
	return doc
}

// ActionMap indexes the document actions by id.
func (d *Document) ActionMap() map[string]*orchestration.Action {
	actions := make(map[string]*orchestration.Action, len(d.Actions))
	for _, r := range d.Actions {
		actions[r.ID] = r.Action()
	}
	return actions
}

// Marshal encodes the document in the given format.
func (d *Document) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding JSON: %w", err)
		}
		return append(data, '\n'), nil
	case FormatYAML:
		data, err := yaml.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("encoding YAML: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// normalizeNumbers converts the json.Number values of free-form mappings to
// int when integral and float64 otherwise, the types YAML decoding yields.
func (d *Document) normalizeNumbers() {
	for i := range d.Actions {
		normalizeMap(d.Actions[i].Parameters)
		normalizeMap(d.Actions[i].SystemKwargs)
	}
	o := &d.Orchestration
	normalizeMap(o.Parameters)
	normalizeMap(o.SystemKwargs)
	for i := range o.Steps {
		normalizeMap(o.Steps[i].Parameters)
		normalizeMap(o.Steps[i].SystemKwargs)
	}
}

func normalizeMap(m map[string]any) {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		normalizeMap(v)
	case []any:
		for i := range v {
			v[i] = normalizeValue(v[i])
		}
	}
	return v
}
