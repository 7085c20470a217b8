package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/nodeforge/livegen/pkg/config"
	"github.com/nodeforge/livegen/pkg/logging"
	"github.com/nodeforge/livegen/pkg/nodes"
)

const version = "0.1.0"

var (
	cfgFile      string
	outputFormat string
	serverURL    string
	apiKeyFlag   string
	serverKey    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:     "livegen",
	Short:   "CLI for the Livepeer AI generation node pack",
	Long:    `livegen drives Livepeer AI cloud inference from the command line: submit generation jobs, inspect their lifecycle, and run the HTTP job server.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.livegen/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "job server URL for the jobs commands")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "Livepeer API key (overrides config and LIVEPEER_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&serverKey, "server-key", "", "API key of the job server, if it requires one")
}

// loadConfig resolves configuration from file, environment and flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if apiKeyFlag != "" {
		cfg.APIKey = apiKeyFlag
	}
	return cfg, nil
}

// newLogger builds the process logger from configuration
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)
}

// newEnv builds an in-process node environment for local commands
func newEnv() (*nodes.Env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return nodes.NewEnv(cfg, newLogger(cfg), nil), nil
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// ServerURL returns the configured job server URL with trailing slashes removed
func ServerURL() string {
	return strings.TrimRight(serverURL, "/")
}
