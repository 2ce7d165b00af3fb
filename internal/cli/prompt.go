package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"
)

func newPromptCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt TEXT...",
		Short: "Ask the model to improve a prompt for this repository",
		Long: `Ask the model to rewrite a prompt so it is specific to the repository the
server operates on. The project layout is sent along with the prompt.

Examples:
  clood prompt "make the parser faster"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := sjson.SetBytes([]byte(`{}`), "prompt", strings.Join(args, " "))
			if err != nil {
				return err
			}
			data, err := o.post(cmd, "api/clood/prompt", body)
			if err != nil {
				return err
			}
			if handled, err := printData(cmd, o, data); handled || err != nil {
				return err
			}
			if !data.Get("answered").Bool() {
				warnLabel.Fprintln(cmd.OutOrStdout(), "The model could not improve this prompt.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), data.Get("improvedPrompt").String())
			return nil
		},
	}
}
