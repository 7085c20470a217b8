package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nodeforge/livegen/pkg/jobs"
	"github.com/nodeforge/livegen/pkg/logging"
	"github.com/nodeforge/livegen/pkg/nodes"
	"github.com/nodeforge/livegen/pkg/server"
	"github.com/nodeforge/livegen/pkg/shutdown"
	tlsutil "github.com/nodeforge/livegen/pkg/tls"
	"github.com/nodeforge/livegen/pkg/tracing"
)

var (
	serveAddr       string
	tracingEnabled  bool
	tracingEndpoint string
	tracingEnv      string
	useTLS          bool
	certFile        string
	keyFile         string
	generateCert    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP job server",
	Long:  `Starts the HTTP server exposing job submission, status, and Prometheus metrics endpoints.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().BoolVar(&tracingEnabled, "tracing", false, "enable OpenTelemetry tracing")
	serveCmd.Flags().StringVar(&tracingEndpoint, "otlp-endpoint", "localhost:4318", "OTLP collector endpoint")
	serveCmd.Flags().StringVar(&tracingEnv, "environment", "development", "deployment environment reported in traces")
	serveCmd.Flags().BoolVar(&useTLS, "tls", false, "serve over TLS")
	serveCmd.Flags().StringVar(&certFile, "cert", "certs/livegen.crt", "TLS certificate file")
	serveCmd.Flags().StringVar(&keyFile, "key", "certs/livegen.key", "TLS key file")
	serveCmd.Flags().BoolVar(&generateCert, "generate-cert", false, "generate a self-signed certificate and exit")
}

func runServe(cmd *cobra.Command, args []string) error {
	if generateCert {
		if err := os.MkdirAll(filepath.Dir(certFile), 0755); err != nil {
			return err
		}
		if err := tlsutil.GenerateSelfSignedCert(certFile, keyFile, "livegen"); err != nil {
			return err
		}
		fmt.Printf("Wrote %s and %s\n", certFile, keyFile)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewFileLogger(cfg.LogDir, "server", logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)
	if err != nil {
		logger = newLogger(cfg)
		logger.Warn("File logging unavailable, using stdout", map[string]interface{}{"error": err.Error()})
	}

	provider, err := tracing.Init(tracing.Config{
		ServiceName:    "livegen",
		ServiceVersion: version,
		Environment:    tracingEnv,
		OTLPEndpoint:   tracingEndpoint,
		Enabled:        tracingEnabled,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	env := nodes.NewEnv(cfg, logger, nil)

	sweeper := jobs.NewSweeper(env.Store, jobs.SweeperConfig{
		JobTTL:        cfg.Cleanup.JobTTL,
		SweepInterval: cfg.Cleanup.SweepInterval,
	}, logger)
	sweeper.Start()

	srv := server.New(env, logger)
	httpServer := &http.Server{
		Addr:         serveAddr,
		Handler:      srv.Router(provider),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	mgr := shutdown.New(30*time.Second, logger)
	mgr.Register(provider.Shutdown)
	mgr.Register(func(ctx context.Context) error {
		sweeper.Stop()
		return nil
	})
	mgr.Register(shutdown.DrainJobs(func() bool {
		return env.Store.StatusCounts()[string(jobs.StatusPending)] == 0
	}, 100*time.Millisecond))
	mgr.Register(shutdown.StopHTTPServer(httpServer, "api"))

	if useTLS {
		tlsConfig, err := tlsutil.LoadServerConfig(certFile, keyFile)
		if err != nil {
			return err
		}
		httpServer.TLSConfig = tlsConfig
	}

	go func() {
		logger.Info("HTTP server listening", map[string]interface{}{"addr": serveAddr, "tls": useTLS})
		var err error
		if useTLS {
			err = httpServer.ListenAndServeTLS("", "")
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	mgr.Wait()
	return nil
}
