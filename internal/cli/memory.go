package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/transport/http/dto"
	"github.com/spf13/cobra"
)

func newMemoryCmd(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Read and write the per-user memory index",
	}
	cmd.AddCommand(newMemoryAddCmd(opts), newMemoryQueryCmd(opts), newMemoryUserCmd(opts))
	return cmd
}

func newMemoryAddCmd(opts *clientOptions) *cobra.Command {
	var req dto.MemoryInsertRequest

	cmd := &cobra.Command{
		Use:   "add <user> <topic> <insights>",
		Short: "Store one memory for a user",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.UserName, req.TopicText, req.InsightsText = args[0], args[1], args[2]
			client, err := opts.client()
			if err != nil {
				return err
			}
			var resp domain.UserMemory
			if err := client.do(cmd.Context(), http.MethodPost, "/api/memory", req, &resp); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.ID)
			return err
		},
	}
	return cmd
}

func newMemoryQueryCmd(opts *clientOptions) *cobra.Command {
	var req dto.MemoryQueryRequest

	cmd := &cobra.Command{
		Use:   "query <user> <question>",
		Short: "Retrieve the memories most relevant to a question",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.UserName, req.Question = args[0], args[1]
			client, err := opts.client()
			if err != nil {
				return err
			}
			var resp domain.MemoryAnswer
			if err := client.do(cmd.Context(), http.MethodPost, "/api/memory/query", req, &resp); err != nil {
				return err
			}
			return writeJSON(cmd, resp)
		},
	}

	cmd.Flags().IntVarP(&req.K, "top", "k", 0, "number of results (server default when 0)")
	return cmd
}

func newMemoryUserCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "user <name>",
		Short: "Check whether a user has stored memories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			var resp domain.UserLookup
			if err := client.do(cmd.Context(), http.MethodGet, "/api/memory/users/"+url.PathEscape(args[0]), nil, &resp); err != nil {
				return err
			}
			return writeJSON(cmd, resp)
		},
	}
}
