package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/careaudit-cli/internal/config"
	"github.com/sells-group/careaudit-cli/internal/importer"
)

var (
	importState   string
	importSource  string
	importTimeout time.Duration
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a facility roster from a CSV or XLSX file, URL or FTP path",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := normalizeState(importState)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		e, err := setup(ctx, config.JobImport)
		if err != nil {
			return err
		}
		defer e.Close()

		j, err := e.Registry.Get(state)
		if err != nil {
			return err
		}
		_, err = importer.New(e.Store, importer.NewDownloader(importTimeout)).Run(ctx, j, importSource)
		return err
	},
}

func init() {
	addStateFlag(importCmd, &importState)
	importCmd.Flags().StringVar(&importSource, "source", "", "roster path, http(s):// or ftp:// URL (required)")
	importCmd.Flags().DurationVar(&importTimeout, "timeout", 2*time.Minute, "download timeout")
	_ = importCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(importCmd)
}
