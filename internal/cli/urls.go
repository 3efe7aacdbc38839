package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ppiankov/casefile/internal/model"
	"github.com/ppiankov/casefile/internal/store"
	"github.com/spf13/cobra"
)

var listLimit int

// urlsCmd lists stored URL records
var urlsCmd = &cobra.Command{
	Use:   "urls",
	Short: "List URL records in the store",
	Long: `List processed URLs with their accessibility and incident verdict.

Example:
  casefile urls
  casefile urls --limit 20 --db ./casefile.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if storePath != "" {
			cfg.Store.Path = storePath
		}

		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		records, err := st.SearchURLs(context.Background(), listLimit)
		if err != nil {
			return err
		}
		return printRecords(cmd.OutOrStdout(), records)
	},
}

func init() {
	rootCmd.AddCommand(urlsCmd)

	urlsCmd.Flags().IntVar(&listLimit, "limit", 100, "max records to list")
	urlsCmd.Flags().StringVar(&storePath, "db", "", "SQLite store path (default from config)")
}

func printRecords(w io.Writer, records []*model.URLRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOMAIN\tACCESSIBLE\tINCIDENT\tCHARS\tURL")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.DomainName, r.Accessible, r.ActualIncident, len([]rune(r.Content)), r.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d record(s)\n", len(records))
	return nil
}
