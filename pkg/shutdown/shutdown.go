// Package shutdown coordinates graceful teardown of the serve daemon:
// HTTP listeners drain first, then background jobs, then the sweeper
// and tracer flush.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nodeforge/livegen/pkg/logging"
)

// Manager executes registered shutdown hooks in LIFO order when a
// termination signal arrives
type Manager struct {
	mu      sync.Mutex
	hooks   []func(context.Context) error
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
	logger  *logging.Logger
}

// New creates a shutdown manager; timeout bounds the whole teardown
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Manager{
		timeout: timeout,
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Register adds a hook. Hooks run in reverse registration order.
func (m *Manager) Register(fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Done is closed once shutdown has been initiated
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until SIGTERM/SIGINT, then runs all hooks
func (m *Manager) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	m.logger.Info("Shutdown signal received", map[string]interface{}{"signal": sig.String()})

	m.once.Do(func() { close(m.done) })
	m.Shutdown()
}

// Shutdown runs the registered hooks in LIFO order under the timeout
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i := len(m.hooks) - 1; i >= 0; i-- {
		if err := m.hooks[i](ctx); err != nil {
			m.logger.Error("Shutdown hook failed", map[string]interface{}{"hook": i, "error": err.Error()})
		}
	}
	m.logger.Info("Graceful shutdown complete")
}

// StopHTTPServer adapts an http.Server into a shutdown hook
func StopHTTPServer(server interface{ Shutdown(context.Context) error }, name string) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("stopping %s server: %w", name, err)
		}
		return nil
	}
}

// DrainJobs returns a hook that waits for in-flight background jobs to
// settle before teardown proceeds. drained must report true once no
// job is pending.
func DrainJobs(drained func() bool, pollInterval time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			if drained() {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("timed out draining background jobs: %w", ctx.Err())
			case <-ticker.C:
			}
		}
	}
}
