package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/clood-dev/clood/internal/clood/server"
	"github.com/clood-dev/clood/internal/common/httpclient"
)

func newVersionCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the clood version and the version of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			serverVersion, apiVersion, serverErr := o.serverVersion(cmd)

			if o.output != "" {
				raw, _ := sjson.Set(`{}`, "cliVersion", getCLIVersion())
				raw, _ = sjson.Set(raw, "apiVersion", server.ApiVersion)
				if serverErr == nil {
					raw, _ = sjson.Set(raw, "serverVersion", serverVersion)
					raw, _ = sjson.Set(raw, "serverApiVersion", apiVersion)
					raw, _ = sjson.Set(raw, "compatible", server.IsVersionCompatible(apiVersion))
				} else {
					raw, _ = sjson.Set(raw, "error", serverErr.Error())
				}
				_, err := printData(cmd, o, gjson.Parse(raw))
				return err
			}

			fmt.Fprintf(out, "clood CLI %s (API %s)\n", getCLIVersion(), server.ApiVersion)
			if serverErr != nil {
				warnLabel.Fprintf(out, "Server: unable to connect: %v\n", serverErr)
				return nil
			}
			fmt.Fprintf(out, "Server: %s (API %s)\n", serverVersion, apiVersion)
			if !server.IsVersionCompatible(apiVersion) {
				warnLabel.Fprintf(out, "Server API version %s is not compatible with this CLI\n", apiVersion)
			}
			return nil
		},
	}
}

func (o *rootOptions) serverVersion(cmd *cobra.Command) (string, string, error) {
	client, err := o.client()
	if err != nil {
		return "", "", err
	}
	body, err := client.DoRequest(cmd.Context(), httpclient.RequestOptions{
		Method: http.MethodGet,
		Path:   "version",
	})
	if err != nil {
		return "", "", err
	}
	rsp := gjson.ParseBytes(body)
	return rsp.Get("serverVersion").String(), rsp.Get("apiVersion").String(), nil
}
