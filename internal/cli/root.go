package cli

import (
	"fmt"
	"runtime"
	"time"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/spf13/cobra"
)

// DefaultServerURL is where client commands look for a running server.
const DefaultServerURL = "http://localhost:8000"

type rootOptions struct {
	configPath string
	debug      bool
	serverURL  string
	timeout    time.Duration
}

func (o *rootOptions) client() *Client {
	return NewClient(o.serverURL, o.timeout)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// NewRootCommand creates the kioku root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "kioku",
		Short: "Bounded retrieval context service",
		Long: `kioku keeps a fixed-capacity window of embedded text chunks and enriches
prompts with the chunks nearest to a query. When the window is full the oldest
chunks are evicted first.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.serverURL, "server", DefaultServerURL, "server URL for client commands")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "client request timeout")

	rootCmd.AddCommand(newServerCommand(opts))
	rootCmd.AddCommand(newIngestCommand(opts))
	rootCmd.AddCommand(newPromptCommand(opts))
	rootCmd.AddCommand(newStatusCommand(opts))
	rootCmd.AddCommand(newInitCommand(opts))
	rootCmd.AddCommand(newVersionCommand(version))
	return rootCmd
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if version == "" {
				version = "dev"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kioku version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
