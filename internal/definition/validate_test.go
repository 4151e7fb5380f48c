package definition

import (
	"errors"
	"testing"

	"github.com/ariel-frischer/orchestra/internal/orchestration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, data string) *ParseResult {
	t.Helper()
	result, err := ParseBytes([]byte(data), FormatYAML)
	require.NoError(t, err)
	return result
}

func validationErrors(t *testing.T, errs []error) []*ValidationError {
	t.Helper()
	out := make([]*ValidationError, 0, len(errs))
	for _, err := range errs {
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		out = append(out, ve)
	}
	return out
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		data      string
		wantPaths []string
		wantLine  int
	}{
		"missing orchestration name": {
			data: `
orchestration:
  version: 1
  steps:
    - id: a
`,
			wantPaths: []string{"orchestration.name"},
			wantLine:  3,
		},
		"missing step id and action code": {
			data: `
actions:
  - id: noop
orchestration:
  name: x
  steps:
    - code: "true"
`,
			wantPaths: []string{"actions[0].code", "orchestration.steps[0].id"},
			wantLine:  3,
		},
		"expected rc out of range": {
			data: `
orchestration:
  name: x
  steps:
    - id: a
      expected_rc: 300
`,
			wantPaths: []string{"orchestration.steps[0].expected_rc"},
			wantLine:  6,
		},
		"duplicate ids": {
			data: `
actions:
  - id: act
    code: "true"
  - id: act
    code: "false"
orchestration:
  name: x
  steps:
    - id: a
    - id: a
`,
			wantPaths: []string{"actions[1].id", "orchestration.steps[1].id"},
			wantLine:  5,
		},
		"unknown references": {
			data: `
orchestration:
  name: broken
  steps:
    - id: a
      action_id: missing
    - id: b
      parent_step_ids: [a, ghost]
`,
			wantPaths: []string{"orchestration.steps[0].action_id", "orchestration.steps[1].parent_step_ids[1]"},
			wantLine:  6,
		},
		"invalid fetcher": {
			data: `
orchestration:
  name: x
  steps:
    - id: a
      regexp_fetch: "(?P<v>"
`,
			wantPaths: []string{"orchestration.steps[0].regexp_fetch"},
			wantLine:  6,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			errs := validationErrors(t, Validate(parse(t, tt.data)))
			paths := make([]string, 0, len(errs))
			for _, ve := range errs {
				paths = append(paths, ve.Path)
			}
			assert.Equal(t, tt.wantPaths, paths)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.wantLine, errs[0].Line)
		})
	}
}

func TestValidate_UnknownReferenceIsTyped(t *testing.T) {
	t.Parallel()

	result := parse(t, `
orchestration:
  name: broken
  steps:
    - id: b
      parent_step_ids: [ghost]
`)
	errs := Validate(result)
	require.Len(t, errs, 1)

	var ref *orchestration.ReferenceNotFoundError
	require.ErrorAs(t, errs[0], &ref)
	assert.Equal(t, "ghost", ref.ID)
	assert.Equal(t, "b", ref.Referrer)
	assert.Contains(t, errs[0].Error(), "line 6, column 25")
}

func TestBuild(t *testing.T) {
	t.Parallel()

	o, err := Build(parse(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "connectivity", o.Name)
	assert.Equal(t, 2, o.Depth())
	check, ok := o.Step("check")
	require.True(t, ok)
	assert.Equal(t, "ping -c1 ${host}", check.Code())
	assert.Equal(t, "ping", check.Name())
	rc, hasRC := check.ExpectedRC()
	assert.True(t, hasRC)
	assert.Zero(t, rc)
	assert.Equal(t, []string{"all", "monitor"}, o.Target())
}

func TestBuild_GraphErrorsAreLocated(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		data     string
		target   any
		wantPath string
	}{
		"rollback parent of forward step": {
			data: `
orchestration:
  name: x
  steps:
    - id: undo
      undo: true
    - id: fwd
      parent_step_ids: [undo]
`,
			target:   new(*orchestration.OrderingViolationError),
			wantPath: "orchestration.steps[1]",
		},
		"cycle": {
			data: `
orchestration:
  name: x
  steps:
    - id: a
      parent_step_ids: [b]
    - id: b
      parent_step_ids: [a]
`,
			target:   new(*orchestration.CycleError),
			wantPath: "orchestration.steps",
		},
		"rollback step with target": {
			data: `
orchestration:
  name: x
  steps:
    - id: undo
      undo: true
      target: [db]
`,
			target:   new(*orchestration.TargetSpecificationError),
			wantPath: "orchestration.steps[0]",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			o, err := Build(parse(t, tt.data))
			assert.Nil(t, o)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Path, tt.wantPath)
			assert.Positive(t, ve.Line)
		})
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()

	original, err := Build(parse(t, sampleYAML))
	require.NoError(t, err)

	for _, format := range []Format{FormatYAML, FormatJSON} {
		data, err := FromOrchestration(original).Marshal(format)
		require.NoError(t, err)

		result, err := ParseBytes(data, format)
		require.NoError(t, err)
		reloaded, err := Build(result)
		require.NoError(t, err)

		eq, err := original.EqImp(reloaded)
		require.NoError(t, err)
		assert.True(t, eq, "format %s", format)
		assert.Equal(t, original.ID, reloaded.ID)
	}

	_, err = FromOrchestration(original).Marshal("toml")
	require.Error(t, err)
}

func TestDocumentRoundTrip_NumericValues(t *testing.T) {
	t.Parallel()

	const numeric = `
actions:
  - id: scale
    code: scale --replicas ${replicas}
    parameters:
      replicas: 3
      ratio: 0.5
orchestration:
  name: scaling
  version: 2
  parameters:
    zones: [1, 2]
  system_kwargs:
    timeout: 30
    env:
      WORKERS: 4
  steps:
    - id: up
      action_id: scale
      parameters:
        replicas: 5
`
	original, err := Build(parse(t, numeric))
	require.NoError(t, err)

	data, err := FromOrchestration(original).Marshal(FormatJSON)
	require.NoError(t, err)
	result, err := ParseBytes(data, FormatJSON)
	require.NoError(t, err)
	reloaded, err := Build(result)
	require.NoError(t, err)

	eq, err := original.EqImp(reloaded)
	require.NoError(t, err)
	assert.True(t, eq)

	up, ok := reloaded.Step("up")
	require.True(t, ok)
	params := up.Parameters()
	assert.Equal(t, 5, params["replicas"])
	assert.Equal(t, 0.5, params["ratio"])
	assert.Equal(t, []any{1, 2}, params["zones"])
	assert.Equal(t, map[string]any{"WORKERS": 4}, up.SystemKwargs()["env"])
}
