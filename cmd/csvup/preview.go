package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/csvpreview/internal/client"
	"github.com/spf13/cobra"
)

func newPreviewCmd(root *rootOptions) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "preview <session-id>",
		Short: "Print the cached preview of a finalized upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := client.NewHTTPClient(root.server, nil).Preview(cmd.Context(), args[0])
			if err != nil {
				var se *client.StatusError
				if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
					return fmt.Errorf("no finalized upload with id %s", args[0])
				}
				return err
			}
			renderPreview(cmd.OutOrStdout(), res, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 10, "preview rows to print (0 for all)")
	return cmd
}
