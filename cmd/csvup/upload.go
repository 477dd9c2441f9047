package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/csvpreview/internal/client"
	"github.com/spf13/cobra"
)

type uploadOptions struct {
	*rootOptions
	chunkSize int64
	attempts  int
	rows      int
}

func newUploadCmd(root *rootOptions) *cobra.Command {
	opts := &uploadOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a CSV file and print its preview",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, opts, args[0])
		},
	}
	cmd.Flags().Int64Var(&opts.chunkSize, "chunk-size", client.DefaultChunkSize, "bytes per chunk")
	cmd.Flags().IntVar(&opts.attempts, "attempts", client.DefaultChunkAttempts, "attempts per chunk before giving up")
	cmd.Flags().IntVar(&opts.rows, "rows", 10, "preview rows to print (0 for all)")
	return cmd
}

func runUpload(cmd *cobra.Command, opts *uploadOptions, path string) error {
	f, closer, err := client.OpenFile(path)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := client.ValidateFile(f); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	u := client.NewUploader(client.NewHTTPClient(opts.server, nil), client.Options{
		ChunkSize: opts.chunkSize,
		Attempts:  opts.attempts,
	})
	u.OnChange(func(s client.State) {
		printProgress(out, client.SnapshotOf(s))
	})

	fmt.Fprintf(out, "Uploading %s (%d bytes)\n", bold(f.Name), f.Size)
	res, err := u.Upload(cmd.Context(), f)
	fmt.Fprintln(out)
	switch {
	case errors.Is(err, client.ErrCanceled):
		fmt.Fprintln(out, yellow("Upload canceled."))
		return nil
	case err != nil:
		fmt.Fprintln(out, red(client.UserMessage(err.Error())))
		return err
	}

	snap := u.Snapshot()
	fmt.Fprintf(out, "%s session %s\n\n", green("Done."), snap.SessionID)
	renderPreview(out, res, opts.rows)
	return nil
}

func printProgress(w io.Writer, snap client.Snapshot) {
	switch snap.Status {
	case client.PhaseUploading:
		fmt.Fprintf(w, "\r  %3.0f%%  part %d of %d", snap.Progress*100, snap.UploadedChunkCount, snap.TotalChunks)
	case client.PhaseFinalizing:
		fmt.Fprintf(w, "\r  100%%  processing file...      ")
	}
}
