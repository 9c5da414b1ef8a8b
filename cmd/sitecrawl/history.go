package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawl/internal/config"
	"github.com/nao1215/sitecrawl/internal/database"
	"github.com/nao1215/sitecrawl/internal/report"
)

// NewHistoryCmd creates the history command.
// It lists crawls archived with 'sitecrawl crawl --save' and can print the
// report of one of them again.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [site]",
		Short: "List archived crawls",
		Long: `History lists crawls archived with 'sitecrawl crawl --save', newest first.

Examples:
  # List every archived crawl
  sitecrawl history

  # List the crawls of one site
  sitecrawl history example.com

  # Print the report of crawl #3 again
  sitecrawl history --show 3

  # Print it as Markdown
  sitecrawl history --show 3 -f markdown

  # Remove crawl #3 from the archive
  sitecrawl history --delete 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64("show", 0, "Print the report of the crawl with this ID")
	cmd.Flags().Int64("delete", 0, "Delete the crawl with this ID")
	cmd.Flags().StringP("format", "f", "text", "Report format for --show: text, markdown, json")
	cmd.Flags().String("db-dir", "", "Database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	showID, err := cmd.Flags().GetInt64("show")
	if err != nil {
		return err
	}
	deleteID, err := cmd.Flags().GetInt64("delete")
	if err != nil {
		return err
	}
	formatName, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	if format == report.FormatCSV {
		return fmt.Errorf("%w: csv is not available for --show", report.ErrUnknownFormat)
	}

	db, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case deleteID > 0:
		return deleteCrawl(ctx, out, db, deleteID)
	case showID > 0:
		return showCrawl(ctx, out, db, showID, format)
	}

	site := ""
	if len(args) > 0 {
		site = args[0]
	}
	return listCrawls(ctx, out, db, site)
}

// openArchive opens the existing crawl archive named by --db-dir.
// It does not create one: an empty archive has nothing to show.
func openArchive(cmd *cobra.Command) (*database.CrawlDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database (run 'sitecrawl crawl --save' first): %w", err)
	}
	return db, nil
}

// listCrawls prints the archived crawls of site, or of every site.
func listCrawls(ctx context.Context, out io.Writer, db *database.CrawlDB, site string) error {
	crawls, err := db.ListCrawls(ctx, site)
	if err != nil {
		return err
	}

	if len(crawls) == 0 {
		if site != "" {
			fmt.Fprintf(out, "No archived crawls found for %s\n", site)
		} else {
			fmt.Fprintln(out, "No archived crawls found.")
		}
		fmt.Fprintln(out, "\nUse 'sitecrawl crawl --save' to archive a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Archived crawls (%d):\n\n", len(crawls))
	fmt.Fprintf(out, "  %-6s  %-20s  %-24s  %-8s  %s\n", "ID", "Started", "Site", "Fetched", "Stopped")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))
	for _, c := range crawls {
		fmt.Fprintf(out, "  %-6d  %-20s  %-24s  %-8d  %s\n",
			c.ID,
			c.StartedAt.Local().Format("2006-01-02 15:04:05"),
			c.Site,
			c.PagesFetched,
			c.StopReason,
		)
	}

	fmt.Fprintln(out, "\nUse 'sitecrawl history --show <id>' to print a crawl report.")
	fmt.Fprintln(out, "Use 'sitecrawl compare <site>' to compare the latest two crawls of a site.")
	return nil
}

// showCrawl prints the report of one archived crawl.
func showCrawl(ctx context.Context, out io.Writer, db *database.CrawlDB, id int64, format report.Format) error {
	result, err := db.GetCrawl(ctx, id)
	if err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("crawl #%d not found", id)
	}

	var w report.Writer
	switch format {
	case report.FormatMarkdown:
		w = report.NewMarkdownWriter(out)
	case report.FormatJSON:
		w = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	default:
		w = report.NewTextWriter(out, report.WithVerbose(true))
	}
	_, err = w.Write(result)
	return err
}

// deleteCrawl removes one crawl from the archive.
func deleteCrawl(ctx context.Context, out io.Writer, db *database.CrawlDB, id int64) error {
	deleted, err := db.DeleteCrawl(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("crawl #%d not found", id)
	}
	fmt.Fprintf(out, "Deleted crawl #%d\n", id)
	return nil
}
