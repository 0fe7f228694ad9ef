package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/pilot/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query and display journal records from the SQLite database.

Subcommands:
  order  - Get details of a specific order by ID
  today  - Summarize today's activity
  day    - Summarize a specific day

Examples:
  pilot journal order <order-id>
  pilot journal today
  pilot journal day 2026-01-15`,
}

var journalOrderCmd = &cobra.Command{
	Use:   "order <order-id>",
	Short: "Get details of a specific order",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalOrder,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Summarize today's closes and blocks",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "Summarize a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalOrderCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./pilot.sqlite", "path to SQLite journal DB")
}

func runJournalOrder(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	rec, err := j.GetOrder(args[0])
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}

	fmt.Printf("%s %s %.2f %s @ %.5f ticket=%d sl=%.5f tp=%.5f mult=%.2f atr=%.2f reason=%q\n",
		rec.Time.Format(time.RFC3339), rec.Side, rec.Volume, rec.Symbol,
		rec.Price, rec.Ticket, rec.StopLoss, rec.TakeProfit, rec.Multiplier, rec.ATR, rec.Reason)
	return nil
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return summarize(time.Now().UTC())
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	day, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		return fmt.Errorf("parse day: %w", err)
	}
	return summarize(day)
}

func summarize(day time.Time) error {
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	s, err := j.SummarizeDay(day)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}
	fmt.Print(journal.FormatDaySummary(s))

	start := day.Truncate(24 * time.Hour)
	closes, err := j.ListClosesBetween(start, start.Add(24*time.Hour))
	if err != nil {
		return fmt.Errorf("list closes: %w", err)
	}
	if len(closes) > 0 {
		fmt.Println()
		fmt.Println(journal.FormatClosesOrg(closes))
	}
	return nil
}
