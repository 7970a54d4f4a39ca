package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentdock/backend/internal/infrastructure/remote"
	"github.com/spf13/cobra"
)

func newSandboxKeyCmd() *cobra.Command {
	var (
		path      string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "sandbox-key",
		Short: "Generate an SSH key pair for the ssh executor backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("resolve home directory: %w", err)
				}
				path = filepath.Join(home, ".ssh", "agentdock_sandbox")
			}
			authorized, err := remote.GenerateSandboxKey(path, overwrite)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "private key: %s\n", path)
			fmt.Fprintln(out, "add this line to the sandbox host's authorized_keys:")
			_, err = fmt.Fprint(out, authorized)
			return err
		},
	}

	cmd.Flags().StringVar(&path, "out", "", "private key path (default ~/.ssh/agentdock_sandbox)")
	cmd.Flags().BoolVar(&overwrite, "force", false, "replace an existing key")
	return cmd
}
