package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/agentdock/backend/internal/transport/http/dto"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newRunTaskCmd(opts *clientOptions) *cobra.Command {
	var (
		req    dto.BrowserTaskRequest
		track  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "run-task <question>",
		Short: "Start a browser documentation task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.UserQuestion = args[0]
			if errs := req.Validate(); len(errs) > 0 {
				return fmt.Errorf("invalid task: %v", errs)
			}
			client, err := opts.client()
			if err != nil {
				return err
			}

			if track {
				var resp dto.AsyncResponse
				if err := client.do(cmd.Context(), http.MethodPost, "/api/run-browser-task-async", req, &resp); err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "task %s %s\n", resp.TaskID, resp.Status)
				return err
			}

			var resp dto.BrowserTaskResponse
			if err := client.do(cmd.Context(), http.MethodPost, "/api/run-browser-task", req, &resp); err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session: %s (%s)\n", resp.SessionID, resp.Status)
			fmt.Fprintf(out, "live view: %s\n", resp.LiveViewURL)
			_, err = fmt.Fprintf(out, "browsers: %d\n", len(resp.Browsers))
			return err
		},
	}

	cmd.Flags().StringVar(&req.UserName, "user", "", "user the task runs on behalf of")
	cmd.Flags().IntVarP(&req.BrowserCount, "browsers", "n", 0, "number of browsers (server default when 0)")
	cmd.Flags().BoolVar(&track, "track", false, "run as a tracked job and print its id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func newStatusCmd(opts *clientOptions) *cobra.Command {
	var session bool

	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show a tracked job, or a browser session with --session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			path := "/api/task-status/" + url.PathEscape(args[0])
			if session {
				path = "/api/browser-session/" + url.PathEscape(args[0])
			}
			var resp json.RawMessage
			if err := client.do(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			return writeJSON(cmd, resp)
		},
	}

	cmd.Flags().BoolVar(&session, "session", false, "look up a browser session instead of a job")
	return cmd
}

func newWatchCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session_id>",
		Short: "Stream live agent steps for a browser session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), client.wsURL("/ws/web-agent/"+url.PathEscape(args[0])), client.wsHeader())
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer conn.Close()

			if done := cmd.Context().Done(); done != nil {
				go func() {
					<-done
					conn.Close()
				}()
			}

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || cmd.Context().Err() != nil {
						return nil
					}
					return fmt.Errorf("read: %w", err)
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(msg)); err != nil {
					return err
				}
			}
		},
	}
}

func newShutdownCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown-sessions",
		Short: "End every remote browser session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			var resp map[string]interface{}
			if err := client.do(cmd.Context(), http.MethodPost, "/api/shutdown-all", nil, &resp); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp["message"])
			return err
		},
	}
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
