package orchestration

// Action is a reusable action template. Steps wrap an Action and may
// override any of its defaults.
type Action struct {
	ID      string
	Name    string
	Version int
	// Code is the command template; ${name} placeholders are filled from
	// the effective parameters at run time.
	Code           string
	Parameters     map[string]any
	SystemKwargs   map[string]any
	ExpectedStdout *string
	ExpectedStderr *string
	ExpectedRC     *int
	// RegexpFetch extracts named groups from stdout as new parameters.
	RegexpFetch  *string
	ErrorOnFetch *bool
}
