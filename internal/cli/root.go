package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const (
	defaultServer = "http://localhost:8000"
	serverEnv     = "AGENTDOCK_SERVER"
	apiKeyEnv     = "AGENTDOCK_API_KEY"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &clientOptions{}

	rootCmd := &cobra.Command{
		Use:           "agentdock",
		Short:         "Drive an agentdock server from the terminal",
		Long:          "agentdock submits browser documentation tasks and sandbox task loops to a running agentdock server, follows live agent output, and releases remote browsers.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOrDefault(serverEnv, defaultServer), "agentdock server base URL")
	rootCmd.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv(apiKeyEnv), "API key sent as X-API-Key")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "request timeout (0 waits indefinitely)")

	rootCmd.AddCommand(
		newRunTaskCmd(opts),
		newExecCmd(opts),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newShutdownCmd(opts),
		newMemoryCmd(opts),
		newSandboxKeyCmd(),
	)

	return rootCmd
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
