package locker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/ariel-frischer/orchestra/internal/ctxlog"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Wildcard overlaps every resource.
const Wildcard = "*"

// State is the phase of a claim.
type State string

const (
	StateDeclared State = "declared"
	StateLocked   State = "locked"
)

// Claim is a declared or committed lock on a set of resources.
type Claim struct {
	ID         string    `yaml:"id"`
	Applicant  string    `yaml:"applicant"`
	Resources  []string  `yaml:"resources"`
	Priority   int       `yaml:"priority"`
	State      State     `yaml:"state"`
	PID        int       `yaml:"pid"`
	DeclaredAt time.Time `yaml:"declared_at"`
}

// Locker manages claims stored in a directory.
type Locker struct {
	dir string
	mu  sync.Mutex
	// alive reports whether the process holding a claim is still running.
	alive func(pid int) bool
}

// New creates a Locker storing claims in dir.
func New(dir string) *Locker {
	return &Locker{dir: dir, alive: isProcessRunning}
}

// Dir returns the lock directory.
func (l *Locker) Dir() string {
	return l.dir
}

// Declare records the intent to lock resources on behalf of applicant.
func (l *Locker) Declare(ctx context.Context, applicant string, resources []string, priority int) (*Claim, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(resources) == 0 {
		return nil, fmt.Errorf("declaring lock for %s: no resources", applicant)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	claim := &Claim{
		ID:         uuid.NewString(),
		Applicant:  applicant,
		Resources:  slices.Clone(resources),
		Priority:   priority,
		State:      StateDeclared,
		PID:        os.Getpid(),
		DeclaredAt: time.Now().UTC(),
	}
	if err := l.checkConflicts(ctx, claim); err != nil {
		return nil, err
	}
	if err := l.write(claim); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("lock declared",
		"claim", claim.ID, "applicant", applicant, "resources", resources, "priority", priority)
	return claim, nil
}

// Commit turns a declared claim into a lock.
func (l *Locker) Commit(ctx context.Context, claim *Claim) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, err := l.load(claim.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		return &UnknownClaimError{ID: claim.ID}
	}
	if err := l.checkConflicts(ctx, stored); err != nil {
		return err
	}

	stored.State = StateLocked
	if err := l.write(stored); err != nil {
		return err
	}
	claim.State = StateLocked

	ctxlog.FromContext(ctx).Debug("lock committed", "claim", claim.ID, "applicant", claim.Applicant)
	return nil
}

// Release removes a claim. Releasing an unknown claim is not an error.
func (l *Locker) Release(ctx context.Context, claim *Claim) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.remove(claim.ID); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("lock released", "claim", claim.ID, "applicant", claim.Applicant)
	return nil
}

// Acquire declares and commits a claim in one call. A claim that cannot be
// committed is released again.
func (l *Locker) Acquire(ctx context.Context, applicant string, resources []string, priority int) (*Claim, error) {
	claim, err := l.Declare(ctx, applicant, resources, priority)
	if err != nil {
		return nil, err
	}
	if err := l.Commit(ctx, claim); err != nil {
		_ = l.Release(ctx, claim)
		return nil, err
	}
	return claim, nil
}

// Claims returns the live claims, oldest first. Stale claims are removed.
func (l *Locker) Claims(ctx context.Context) ([]*Claim, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.live(ctx)
}

// checkConflicts fails with *ConflictError for the first live claim that
// blocks c: a held lock, or a declared claim with a lower priority value.
func (l *Locker) checkConflicts(ctx context.Context, c *Claim) error {
	claims, err := l.live(ctx)
	if err != nil {
		return err
	}
	for _, other := range claims {
		if other.ID == c.ID {
			continue
		}
		shared := overlap(c.Resources, other.Resources)
		if len(shared) == 0 {
			continue
		}
		if other.State == StateLocked || other.Priority < c.Priority {
			return &ConflictError{Resources: shared, Holder: other}
		}
	}
	return nil
}

// live lists the stored claims, removing those whose process has exited.
func (l *Locker) live(ctx context.Context) ([]*Claim, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading lock directory: %w", err)
	}

	var claims []*Claim
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lock" {
			continue
		}
		claim, err := l.load(entry.Name()[:len(entry.Name())-len(".lock")])
		if err != nil || claim == nil {
			continue // Skip invalid lock files
		}
		if !l.alive(claim.PID) {
			ctxlog.FromContext(ctx).Info("removing stale lock",
				"claim", claim.ID, "applicant", claim.Applicant, "pid", claim.PID)
			_ = l.remove(claim.ID)
			continue
		}
		claims = append(claims, claim)
	}

	sort.SliceStable(claims, func(i, j int) bool {
		return claims[i].DeclaredAt.Before(claims[j].DeclaredAt)
	})
	return claims, nil
}

// overlap returns the resources of a that collide with b.
func overlap(a, b []string) []string {
	if slices.Contains(b, Wildcard) {
		return slices.Clone(a)
	}
	if slices.Contains(a, Wildcard) {
		return slices.Clone(b)
	}
	var shared []string
	for _, r := range a {
		if slices.Contains(b, r) {
			shared = append(shared, r)
		}
	}
	return shared
}

func (l *Locker) path(id string) string {
	return filepath.Join(l.dir, id+".lock")
}

// load reads a claim. Returns nil and no error if it does not exist.
func (l *Locker) load(id string) (*Claim, error) {
	data, err := os.ReadFile(l.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading lock file: %w", err)
	}

	var claim Claim
	if err := yaml.Unmarshal(data, &claim); err != nil {
		return nil, fmt.Errorf("parsing lock file: %w", err)
	}
	return &claim, nil
}

// write stores a claim atomically.
func (l *Locker) write(claim *Claim) error {
	data, err := yaml.Marshal(claim)
	if err != nil {
		return fmt.Errorf("marshaling lock: %w", err)
	}

	lockPath := l.path(claim.ID)
	tmpPath := lockPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temp lock file: %w", err)
	}
	if err := os.Rename(tmpPath, lockPath); err != nil {
		os.Remove(tmpPath) // Best effort cleanup
		return fmt.Errorf("renaming temp lock file: %w", err)
	}
	return nil
}

func (l *Locker) remove(id string) error {
	if err := os.Remove(l.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// isProcessRunning checks if a process with the given PID exists.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds. Send signal 0 to check existence.
	return process.Signal(syscall.Signal(0)) == nil
}
