// Package startup sequences daemon dependencies. Dependencies declare what
// they depend on by name; Start brings them up in dependency order with
// fibonacci backoff between attempts, Stop tears them down in reverse start
// order.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dependency is a startable unit of the daemon.
type Dependency interface {
	Name() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type status int

const (
	statusPending status = iota
	statusStarted
	statusStopped
	statusFailed
)

// Manager starts and stops registered dependencies.
type Manager struct {
	dependencies map[string]Dependency
	registered   []string
	started      []string
	statuses     map[string]status
	logger       ectologger.Logger
	maxAttempts  int
}

// New creates a Manager that retries startup up to maxAttempts times.
func New(logger ectologger.Logger, maxAttempts int) *Manager {
	return &Manager{
		dependencies: make(map[string]Dependency),
		statuses:     make(map[string]status),
		logger:       logger,
		maxAttempts:  maxAttempts,
	}
}

// Add registers a dependency. Registration order is used as a tiebreaker
// when dependencies do not order each other.
func (m *Manager) Add(dep Dependency) {
	m.dependencies[dep.Name()] = dep
	m.registered = append(m.registered, dep.Name())
}

// Start brings every dependency up. On failure the whole sequence is
// retried with fibonacci backoff; already-started dependencies are skipped.
func (m *Manager) Start(ctx context.Context) error {
	var lastErr error

	a, b := 1, 1
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		m.logger.WithContext(ctx).WithFields(map[string]any{
			"attempt": attempt,
		}).Info("beginning startup attempt")

		lastErr = nil
		for _, name := range m.registered {
			if err := m.startOne(ctx, name); err != nil {
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}

		if attempt == m.maxAttempts {
			break
		}

		wait := time.Duration(a) * time.Second
		m.logger.WithContext(ctx).WithFields(map[string]any{
			"wait":    wait.String(),
			"attempt": attempt,
		}).Warn("startup attempt failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", m.maxAttempts, lastErr)
}

func (m *Manager) startOne(ctx context.Context, name string) error {
	if m.statuses[name] == statusStarted {
		return nil
	}

	dep, ok := m.dependencies[name]
	if !ok {
		return fmt.Errorf("unknown startup dependency %q", name)
	}

	for _, upstream := range dep.DependsOn() {
		if err := m.startOne(ctx, upstream); err != nil {
			return err
		}
	}

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"dependency": name,
	}).Info("starting dependency")

	if err := dep.Start(ctx); err != nil {
		m.statuses[name] = statusFailed
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"dependency": name,
		}).Error("failed to start dependency")
		return fmt.Errorf("failed to start %q: %w", name, err)
	}

	m.statuses[name] = statusStarted
	m.started = append(m.started, name)
	return nil
}

// Stop tears dependencies down in reverse start order. All stops are
// attempted; the first error is returned.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error

	for i := len(m.started) - 1; i >= 0; i-- {
		name := m.started[i]
		dep := m.dependencies[name]

		m.logger.WithContext(ctx).WithFields(map[string]any{
			"dependency": name,
		}).Info("stopping dependency")

		if err := dep.Stop(ctx); err != nil {
			m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"dependency": name,
			}).Error("failed to stop dependency")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to stop %q: %w", name, err)
			}
			continue
		}
		m.statuses[name] = statusStopped
	}

	m.started = m.started[:0]
	return firstErr
}

// Func adapts a pair of closures into a Dependency.
type Func struct {
	DependencyName string
	Upstream       []string
	StartFunc      func(ctx context.Context) error
	StopFunc       func(ctx context.Context) error
}

func (f Func) Name() string        { return f.DependencyName }
func (f Func) DependsOn() []string { return f.Upstream }

func (f Func) Start(ctx context.Context) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

func (f Func) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}
