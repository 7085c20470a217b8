// Package nodes exposes the generation operations as graph node
// wrappers: each submit node marshals widget parameters into one
// gateway request and hands it to the job lifecycle layer, and each
// getter node polls a job id and emits host-native outputs. Nodes
// never talk to the gateway directly; everything flows through the
// shared Env.
package nodes

import (
	"net/http"
	"time"

	"github.com/nodeforge/livegen/pkg/config"
	"github.com/nodeforge/livegen/pkg/gateway"
	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/logging"
	"github.com/nodeforge/livegen/pkg/retry"
)

// Env bundles the process-wide collaborators every node needs. One Env
// is built at startup and shared by all node instances.
type Env struct {
	Config    *config.Config
	Store     *jobs.Store
	Submitter *jobs.Submitter
	Client    *gateway.Client
	HTTP      *http.Client
	Logger    *logging.Logger
}

// NewEnv wires the node environment from loaded configuration.
// interrupted is the host's cancellation probe; nil means never
// interrupted.
func NewEnv(cfg *config.Config, logger *logging.Logger, interrupted func() bool) *Env {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	store := jobs.NewStore(logger)
	httpClient := &http.Client{}
	return &Env{
		Config:    cfg,
		Store:     store,
		Submitter: jobs.NewSubmitter(store, logger, interrupted),
		Client: gateway.NewClient(cfg.APIKey,
			gateway.WithBaseURL(cfg.GatewayURL),
			gateway.WithHTTPClient(httpClient),
			gateway.WithLogger(logger),
		),
		HTTP:   httpClient,
		Logger: logger,
	}
}

// CommonParams are the widget inputs shared by every submit node
type CommonParams struct {
	// Enabled short-circuits the node entirely when false
	Enabled bool
	// APIKey overrides the configured key for this node instance
	APIKey string
	// MaxRetries is the total attempt budget, first try included
	MaxRetries int
	// RetryDelay is the pause before the first re-attempt; each
	// subsequent pause grows by half
	RetryDelay time.Duration
	// RunAsync submits on a background goroutine and returns the id
	// immediately
	RunAsync bool
	// SyncTimeout bounds each attempt in synchronous mode
	SyncTimeout time.Duration
}

// DefaultCommonParams seeds the widget defaults from configuration
func DefaultCommonParams(cfg *config.Config) CommonParams {
	return CommonParams{
		Enabled:     true,
		APIKey:      cfg.APIKey,
		MaxRetries:  cfg.Retry.MaxRetries,
		RetryDelay:  cfg.Retry.RetryDelay,
		RunAsync:    false,
		SyncTimeout: cfg.DefaultTimeout,
	}
}

// retryConfig translates widget params into the executor's policy
func (p CommonParams) retryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	if p.MaxRetries > 0 {
		cfg.MaxAttempts = p.MaxRetries
	}
	if p.RetryDelay > 0 {
		cfg.InitialDelay = p.RetryDelay
	}
	if p.SyncTimeout > 0 {
		cfg.AttemptTimeout = p.SyncTimeout
	}
	return cfg
}

// client returns the env's gateway client, or a per-node one when the
// widget carries its own API key
func (e *Env) client(p CommonParams) *gateway.Client {
	if p.APIKey == "" || p.APIKey == e.Config.APIKey {
		return e.Client
	}
	return gateway.NewClient(p.APIKey,
		gateway.WithBaseURL(e.Config.GatewayURL),
		gateway.WithHTTPClient(e.HTTP),
		gateway.WithLogger(e.Logger),
	)
}
