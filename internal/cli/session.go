package cli

import (
	"net/http"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/clood-dev/clood/internal/common/httpclient"
)

func newSessionCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session [command]",
		Short: "Start and finish sessions on a clood server",
		Long: `Start and finish sessions on a clood server.
A session holds one proposal from the model. With version control the
proposal is written to a new branch which is then merged, discarded or
reverted.

Available Commands:
  start    Ask the model for changes and apply them on a new branch
  merge    Commit the session's files and merge the branch
  discard  Drop the session's branch and changes
  revert   Drop the session's branch and restore the original state
  list     List live sessions`,
	}
	cmd.AddCommand(newSessionStartCmd(o))
	cmd.AddCommand(newTerminalCmd(o, "merge", "Commit the session's files and merge its branch into the original branch"))
	cmd.AddCommand(newTerminalCmd(o, "discard", "Discard the session's changes and delete its branch"))
	cmd.AddCommand(newTerminalCmd(o, "revert", "Revert the session and return to the original branch"))
	cmd.AddCommand(newSessionListCmd(o))
	return cmd
}

func newSessionStartCmd(o *rootOptions) *cobra.Command {
	var prompt string
	var noVCS bool
	cmd := &cobra.Command{
		Use:   "start -p PROMPT FILE...",
		Short: "Start a session",
		Long: `Start a session. The files are read by the server, sent to the model with
the prompt and the returned changes are written on a new branch.
File paths are relative to the repository root of the server.

Examples:
  clood session start -p "add a String method to Outcome" internal/outcome.go

  # Only show the proposal, leaving the repository untouched
  clood session start --no-vcs -p "explain the retry loop" client.go`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := sjson.SetBytes([]byte(`{}`), "prompt", prompt)
			if err != nil {
				return err
			}
			if body, err = sjson.SetBytes(body, "files", args); err != nil {
				return err
			}
			if body, err = sjson.SetBytes(body, "useVersionControl", !noVCS); err != nil {
				return err
			}
			data, err := o.post(cmd, "api/clood/start", body)
			if err != nil {
				return err
			}
			if handled, err := printData(cmd, o, data); handled || err != nil {
				return err
			}
			printStarted(cmd, data)
			return nil
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Instructions for the model")
	cmd.Flags().BoolVar(&noVCS, "no-vcs", false, "Return the proposal without creating a branch or writing files")
	cmd.MarkFlagRequired("prompt")
	return cmd
}

func newTerminalCmd(o *rootOptions, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " SESSION_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := sjson.SetBytes([]byte(`{}`), "id", args[0])
			if err != nil {
				return err
			}
			data, err := o.post(cmd, "api/clood/"+name, body)
			if err != nil {
				return err
			}
			if handled, err := printData(cmd, o, data); handled || err != nil {
				return err
			}
			printOutcome(cmd, data)
			return nil
		},
	}
}

func newSessionListCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := o.client()
			if err != nil {
				return err
			}
			data, err := client.Call(cmd.Context(), httpclient.RequestOptions{
				Method: http.MethodGet,
				Path:   "api/clood/sessions",
			})
			if err != nil {
				return err
			}
			if handled, err := printData(cmd, o, data); handled || err != nil {
				return err
			}
			printSessions(cmd, data)
			return nil
		},
	}
}

func (o *rootOptions) post(cmd *cobra.Command, path string, body []byte) (gjson.Result, error) {
	client, err := o.client()
	if err != nil {
		return gjson.Result{}, err
	}
	return client.Call(cmd.Context(), httpclient.RequestOptions{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}
