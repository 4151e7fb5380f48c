package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deployAction() *Action {
	return &Action{
		ID:             "act-deploy",
		Name:           "deploy",
		Code:           "deploy ${app} --to ${env}",
		Parameters:     map[string]any{"app": "web", "env": "dev"},
		SystemKwargs:   map[string]any{"timeout": 30},
		ExpectedStdout: ptr("done"),
		RegexpFetch:    ptr(`version (?P<version>\S+)`),
	}
}

func TestStep_Name(t *testing.T) {
	t.Parallel()

	o := New("o", 1)
	named := mustStep(t, o, StepDef{ID: "a", Name: "explicit", Action: deployAction()})
	fromAction := mustStep(t, o, StepDef{ID: "b", Action: deployAction()})
	bare := mustStep(t, o, StepDef{ID: "c"})

	assert.Equal(t, "explicit", named.Name())
	assert.Equal(t, "deploy", fromAction.Name())
	assert.Equal(t, "c", bare.Name())
}

func TestStep_Resolution(t *testing.T) {
	t.Parallel()

	o := New("o", 1,
		WithParameters(map[string]any{"env": "staging", "region": "eu"}),
		WithSystemKwargs(map[string]any{"user": "deploy"}),
		WithErrorPolicy(false, true, false),
	)
	action := deployAction()
	s := mustStep(t, o, StepDef{
		ID:             "a",
		Action:         action,
		Parameters:     map[string]any{"region": "us"},
		ExpectedStderr: ptr("warn"),
		UndoOnError:    ptr(true),
	})

	assert.Equal(t, map[string]any{"app": "web", "env": "staging", "region": "us"}, s.Parameters())
	assert.Equal(t, map[string]any{"timeout": 30, "user": "deploy"}, s.SystemKwargs())
	assert.Equal(t, "deploy ${app} --to ${env}", s.Code())
	assert.Equal(t, "done", s.ExpectedStdout())
	assert.Equal(t, "warn", s.ExpectedStderr())
	assert.False(t, s.StopOnError())
	assert.True(t, s.StopUndoOnError())
	assert.True(t, s.UndoOnError())
	_, hasRC := s.ExpectedRC()
	assert.False(t, hasRC)

	// Merged mappings are fresh copies.
	s.Parameters()["app"] = "mutated"
	assert.Equal(t, "web", action.Parameters["app"])
	assert.Equal(t, "web", s.Parameters()["app"])
}

func TestStep_WithoutAction(t *testing.T) {
	t.Parallel()

	o := New("o", 1)
	s := mustStep(t, o, StepDef{ID: "a"})

	assert.Empty(t, s.Code())
	assert.Empty(t, s.Parameters())
	assert.Empty(t, s.ExpectedStdout())
	assert.Empty(t, s.RegexpFetch())
	assert.False(t, s.ErrorOnFetch())
	assert.Nil(t, s.Action())
}

func TestStep_SettersNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		set    func(s *Step)
		stored func(sr StepRecord) bool
	}{
		"code equal to action is unset": {
			set:    func(s *Step) { s.SetCode("deploy ${app} --to ${env}") },
			stored: func(sr StepRecord) bool { return sr.Code != nil },
		},
		"expected stdout equal to action is unset": {
			set:    func(s *Step) { s.SetExpectedStdout("done") },
			stored: func(sr StepRecord) bool { return sr.ExpectedStdout != nil },
		},
		"stop on error equal to orchestration is unset": {
			set:    func(s *Step) { s.SetStopOnError(true) },
			stored: func(sr StepRecord) bool { return sr.StopOnError != nil },
		},
		"error on fetch equal to zero fallback is unset": {
			set:    func(s *Step) { s.SetErrorOnFetch(false) },
			stored: func(sr StepRecord) bool { return sr.ErrorOnFetch != nil },
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			o := New("o", 1)
			s := mustStep(t, o, StepDef{ID: "a", Action: deployAction(), Code: ptr("other")})
			s.SetStopOnError(false)
			s.SetErrorOnFetch(true)
			s.SetExpectedStdout("other")

			tt.set(s)
			assert.False(t, tt.stored(s.record()))
		})
	}
}

func TestStep_SetOverrides(t *testing.T) {
	t.Parallel()

	o := New("o", 1)
	s := mustStep(t, o, StepDef{ID: "a", Action: deployAction()})

	s.SetCode("rollback ${app}")
	s.SetExpectedRC(0)
	s.SetUndoOnError(false)
	s.SetStopUndoOnError(false)
	s.SetRegexpFetch(`id=(?P<id>\d+)`)
	s.SetExpectedStderr("")

	rc, ok := s.ExpectedRC()
	assert.True(t, ok)
	assert.Zero(t, rc)
	assert.Equal(t, "rollback ${app}", s.Code())
	assert.False(t, s.UndoOnError())
	assert.False(t, s.StopUndoOnError())
	assert.Equal(t, []string{"id"}, s.FetchedParameters())
	assert.Nil(t, s.record().ExpectedStderr)
}

func TestStep_SetParameters(t *testing.T) {
	t.Parallel()

	o := New("o", 1, WithParameters(map[string]any{"region": "eu"}))
	s := mustStep(t, o, StepDef{ID: "a", Action: deployAction()})

	s.SetParameters(map[string]any{"app": "web", "region": "eu", "replicas": 3})
	assert.Equal(t, map[string]any{"replicas": 3}, s.record().Parameters)
	assert.Equal(t, map[string]any{"app": "web", "env": "dev", "region": "eu", "replicas": 3}, s.Parameters())

	s.SetParameters(map[string]any{"app": "web"})
	assert.Nil(t, s.record().Parameters)

	s.SetSystemKwargs(map[string]any{"timeout": 60})
	assert.Equal(t, map[string]any{"timeout": 60}, s.record().SystemKwargs)
}

func TestStep_DetachedDefaults(t *testing.T) {
	t.Parallel()

	o := New("o", 1, WithErrorPolicy(false, false, false))
	s := mustStep(t, o, StepDef{ID: "a"})
	assert.False(t, s.StopOnError())

	require.NoError(t, o.DeleteStep(s))
	assert.True(t, s.StopOnError())
	assert.True(t, s.UndoOnError())
	assert.Nil(t, s.Parents())
	assert.Nil(t, s.Children())
}

func TestStep_SetTarget(t *testing.T) {
	t.Parallel()

	o := New("o", 1)
	fwd := mustStep(t, o, StepDef{ID: "fwd"})
	undo := mustStep(t, o, StepDef{ID: "undo", Undo: true})

	require.NoError(t, fwd.SetTarget([]string{"db"}))
	assert.Equal(t, []string{"db"}, fwd.Target())

	var te *TargetSpecificationError
	require.ErrorAs(t, fwd.SetTarget(nil), &te)
	require.ErrorAs(t, undo.SetTarget([]string{"db"}), &te)
	assert.Equal(t, []string{"db"}, fwd.Target())
	assert.Empty(t, undo.Target())
}

func TestStep_EqImp(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		a, b StepDef
		want bool
	}{
		"identity and name ignored": {
			a:    StepDef{ID: "a", Name: "first", Action: deployAction()},
			b:    StepDef{ID: "b", Name: "second", Action: deployAction()},
			want: true,
		},
		"override equal to inherited value": {
			a:    StepDef{ID: "a", Action: deployAction(), Code: ptr("deploy ${app} --to ${env}")},
			b:    StepDef{ID: "b", Action: deployAction()},
			want: true,
		},
		"target ignored": {
			a:    StepDef{ID: "a", Target: []string{"x"}},
			b:    StepDef{ID: "b", Target: []string{"y"}},
			want: true,
		},
		"undo flag differs": {
			a:    StepDef{ID: "a"},
			b:    StepDef{ID: "b", Undo: true},
			want: false,
		},
		"code differs": {
			a:    StepDef{ID: "a", Code: ptr("true")},
			b:    StepDef{ID: "b", Code: ptr("false")},
			want: false,
		},
		"expected rc presence differs": {
			a:    StepDef{ID: "a", ExpectedRC: ptr(0)},
			b:    StepDef{ID: "b"},
			want: false,
		},
		"parameters differ": {
			a:    StepDef{ID: "a", Parameters: map[string]any{"n": 1}},
			b:    StepDef{ID: "b", Parameters: map[string]any{"n": 2}},
			want: false,
		},
		"system kwargs differ": {
			a:    StepDef{ID: "a", SystemKwargs: map[string]any{"user": "root"}},
			b:    StepDef{ID: "b"},
			want: false,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			o := New("o", 1)
			a := mustStep(t, o, tt.a)
			b := mustStep(t, o, tt.b)
			assert.Equal(t, tt.want, a.EqImp(b))
			assert.Equal(t, tt.want, b.EqImp(a))
			assert.True(t, a.EqImp(a))
		})
	}
}

func TestStep_UserParameters(t *testing.T) {
	t.Parallel()

	o := New("o", 1)
	s := mustStep(t, o, StepDef{
		ID:         "a",
		Code:       ptr("deploy ${app} --to $HOME --tag $${literal}"),
		Parameters: map[string]any{"env": "prod-${region}", "count": 3},
	})

	assert.Equal(t, []string{"app", "region"}, s.UserParameters())
}

func TestStep_FetchedParameters(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern string
		want    []string
	}{
		"named groups sorted": {
			pattern: `version (?P<version>\S+) build (?P<build>\d+)`,
			want:    []string{"build", "version"},
		},
		"unnamed groups ignored": {
			pattern: `(\d+) (?P<n>\w+)`,
			want:    []string{"n"},
		},
		"invalid pattern": {
			pattern: `(`,
		},
		"no fetcher": {},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			o := New("o", 1)
			s := mustStep(t, o, StepDef{ID: "a", RegexpFetch: ptr(tt.pattern)})
			assert.Equal(t, tt.want, s.FetchedParameters())
		})
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		template string
		want     []string
	}{
		"braced only":      {template: "${a} $b ${a} ${c}", want: []string{"a", "c"}},
		"escaped dollar":   {template: "$${a} ${b}", want: []string{"b"}},
		"default operator": {template: "${name:-x}", want: []string{"name"}},
		"no placeholders":  {template: "echo 1 $ 2 $HOME"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Placeholders(tt.template))
		})
	}
}
