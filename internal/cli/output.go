package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"sigs.k8s.io/yaml"
)

// printData writes data in the format selected with -o and reports whether it
// did. Callers fall back to their text rendering when it returns false.
func printData(cmd *cobra.Command, o *rootOptions, data gjson.Result) (bool, error) {
	raw := []byte(data.Raw)
	if len(raw) == 0 {
		raw = []byte("null")
	}
	switch strings.ToLower(o.output) {
	case "":
		return false, nil
	case "json":
		fmt.Fprint(cmd.OutOrStdout(), string(pretty.Pretty(raw)))
		return true, nil
	case "yaml":
		b, err := yaml.JSONToYAML(raw)
		if err != nil {
			return true, fmt.Errorf("failed to format YAML output: %v", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(b))
		return true, nil
	default:
		return true, fmt.Errorf("unsupported output format %q", o.output)
	}
}

// outcomeTitle turns an outcome such as "no_changes" into "No Changes".
func outcomeTitle(outcome string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(outcome, "_", " "))
}

func printOutcome(cmd *cobra.Command, data gjson.Result) {
	out := cmd.OutOrStdout()
	okLabel.Fprintf(out, "%s: ", outcomeTitle(data.Get("outcome").String()))
	fmt.Fprintln(out, data.Get("message").String())
}

func printStarted(cmd *cobra.Command, data gjson.Result) {
	out := cmd.OutOrStdout()
	okLabel.Fprintf(out, "Session %s started\n", data.Get("id").String())
	if branch := data.Get("newBranch").String(); branch != "" {
		fmt.Fprintf(out, "Branch: %s\n", branch)
	} else {
		fmt.Fprintln(out, "Advisory session, no files were written.")
	}
	printFileList(cmd, "Changed files", data.Get("proposedChanges.changedFiles.#.filename"))
	printFileList(cmd, "New files", data.Get("proposedChanges.newFiles.#.filename"))
}

func printFileList(cmd *cobra.Command, title string, names gjson.Result) {
	list := names.Array()
	if len(list) == 0 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", title)
	for _, name := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name.String())
	}
}

func printSessions(cmd *cobra.Command, data gjson.Result) {
	out := cmd.OutOrStdout()
	sessions := data.Array()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No active sessions.")
		return
	}
	fmt.Fprintf(out, "%-36s %-32s %-8s %-8s %-20s\n", "SESSION ID", "BRANCH", "CHANGED", "NEW", "CREATED")
	fmt.Fprintln(out, strings.Repeat("-", 108))
	for _, s := range sessions {
		branch := s.Get("newBranch").String()
		if branch == "" {
			branch = "(advisory)"
		}
		fmt.Fprintf(out, "%-36s %-32s %-8d %-8d %-20s\n",
			s.Get("id").String(),
			branch,
			s.Get("changedFiles").Int(),
			s.Get("newFiles").Int(),
			formatTimestamp(s.Get("createdAt").String()))
	}
}

// formatTimestamp renders an RFC 3339 timestamp in the local timezone.
func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
