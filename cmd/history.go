package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wechat_ai_editor/config"
	"wechat_ai_editor/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, show or delete saved drafts",
	Long: `Inspect the local draft history (newest first, at most 20 entries).

Examples:
  wechat-editor history list
  wechat-editor history show 3f2a...
  wechat-editor history delete 3f2a...`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved drafts",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the formatted HTML of a draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd)
}

func withHistory(fn func(*history.Store) error) error {
	logger := newLogger()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	hist, closeHist, err := openHistory(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeHist()
	return fn(hist)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	return withHistory(func(hist *history.Store) error {
		entries := hist.List()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No drafts saved.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSAVED\tIMAGES\tTITLE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.ID, e.Timestamp.Local().Format("2006-01-02 15:04"), len(e.Images), e.Title)
		}
		return w.Flush()
	})
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	return withHistory(func(hist *history.Store) error {
		entry, err := hist.Select(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, entry.FormattedContent)
		return nil
	})
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	return withHistory(func(hist *history.Store) error {
		removed, err := hist.Delete(args[0])
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintf(os.Stderr, "No draft with id %s\n", args[0])
			return nil
		}
		fmt.Fprintf(out, "Deleted %s\n", args[0])
		return nil
	})
}
