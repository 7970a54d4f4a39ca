package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentdock/backend/internal/domain"
	"github.com/agentdock/backend/internal/transport/http/dto"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newExecCmd(opts *clientOptions) *cobra.Command {
	var (
		req    dto.ExecuteRequest
		stream bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "exec <task>",
		Short: "Run a sandbox task loop against a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Task = args[0]
			if errs := req.Validate(); len(errs) > 0 {
				return fmt.Errorf("invalid task: %v", errs)
			}
			client, err := opts.client()
			if err != nil {
				return err
			}

			if stream {
				return streamTask(cmd, client, req)
			}

			var resp dto.ExecuteResponse
			if err := client.do(cmd.Context(), http.MethodPost, "/execute", req, &resp); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			printHistory(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.RepoURL, "repo", "", "repository to clone before the loop starts")
	cmd.Flags().StringVar(&req.ProjectName, "project", "", "project directory inside the sandbox")
	cmd.Flags().StringVar(&req.ContainerType, "backend", "", "executor backend: local, queue or ssh")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream loop events over a websocket")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

type streamFrame struct {
	domain.TaskEvent
	Details []string             `json:"details,omitempty"`
	Result  *dto.ExecuteResponse `json:"result,omitempty"`
}

func streamTask(cmd *cobra.Command, client *apiClient, req dto.ExecuteRequest) error {
	conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), client.wsURL("/ws/commands"), client.wsHeader())
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send task: %w", err)
	}

	out := cmd.OutOrStdout()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		var frame streamFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}

		switch frame.Type {
		case "result":
			if frame.Result != nil {
				fmt.Fprintf(out, "run %s finished: %s\n", frame.Result.RunID, frame.Result.Status)
			}
			return nil
		case domain.TaskEventError:
			if frame.Command == "" && frame.Iteration == 0 {
				return fmt.Errorf("task failed: %s %v", frame.Error, frame.Details)
			}
			fmt.Fprintf(out, "[%d] error: %s\n", frame.Iteration, frame.Error)
		case domain.TaskEventCommand:
			fmt.Fprintf(out, "[%d] $ %s\n", frame.Iteration, frame.Command)
		case domain.TaskEventOutput:
			fmt.Fprintln(out, frame.Output)
		default:
			fmt.Fprintf(out, "[%d] %s %s\n", frame.Iteration, frame.Type, frame.Error)
		}
	}
}

func printHistory(cmd *cobra.Command, resp dto.ExecuteResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s: %s\n", resp.RunID, resp.Status)
	for i, h := range resp.History {
		fmt.Fprintf(out, "[%d] $ %s\n%s\n", i+1, h.Command, h.Output)
	}
}
