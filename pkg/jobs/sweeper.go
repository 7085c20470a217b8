package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nodeforge/livegen/pkg/logging"
)

// SweeperConfig defines the retention policy for settled jobs
type SweeperConfig struct {
	JobTTL        time.Duration // Age past LastUpdated before eviction
	SweepInterval time.Duration // How often the sweep runs
}

// DefaultSweeperConfig returns the standard one-hour retention swept
// every five minutes
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		JobTTL:        time.Hour,
		SweepInterval: 5 * time.Minute,
	}
}

// Sweeper periodically removes terminal, unreferenced, expired records
// from the store so long-running sessions do not accumulate raw results
// and decoded tensors forever.
type Sweeper struct {
	config SweeperConfig
	store  *Store
	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	totalRemoved int64
	lastSweep    time.Time
}

// NewSweeper creates a sweeper for the given store
func NewSweeper(store *Store, config SweeperConfig, logger *logging.Logger) *Sweeper {
	if config.JobTTL <= 0 {
		config.JobTTL = time.Hour
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		config: config,
		store:  store,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the background sweep loop
func (sw *Sweeper) Start() {
	sw.wg.Add(1)
	go sw.run()
	sw.logger.Info("Job sweeper started", map[string]interface{}{
		"ttl":      sw.config.JobTTL.String(),
		"interval": sw.config.SweepInterval.String(),
	})
}

// Stop terminates the sweep loop and waits for it to exit
func (sw *Sweeper) Stop() {
	sw.cancel()
	sw.wg.Wait()
}

func (sw *Sweeper) run() {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.ctx.Done():
			return
		case <-ticker.C:
			sw.SweepOnce()
		}
	}
}

// SweepOnce runs a single sweep pass and returns the eviction count
func (sw *Sweeper) SweepOnce() int {
	removed := sw.store.sweepExpired(sw.config.JobTTL)

	sw.mu.Lock()
	sw.totalRemoved += int64(removed)
	sw.lastSweep = time.Now()
	sw.mu.Unlock()

	if removed > 0 {
		sw.logger.Info(fmt.Sprintf("Swept %d expired jobs", removed))
	}
	return removed
}

// Stats returns total evictions and the last sweep time
func (sw *Sweeper) Stats() (int64, time.Time) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.totalRemoved, sw.lastSweep
}
