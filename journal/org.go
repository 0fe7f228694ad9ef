package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatCloseOrg renders a CloseRecord as an Org-mode block suitable for
// pasting into a trading journal. Structured facts live in a PROPERTIES
// drawer; the narrative sections stay empty for the operator.
func FormatCloseOrg(c CloseRecord) string {
	heading := fmt.Sprintf("** Close: %s #%d", c.Symbol, c.Ticket)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TICKET: %d\n", c.Ticket))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", c.Symbol))
	b.WriteString(fmt.Sprintf(":VOLUME: %.2f\n", c.Volume))
	b.WriteString(fmt.Sprintf(":PRICE: %.5f\n", c.Price))
	b.WriteString(fmt.Sprintf(":PROFIT: %.2f\n", c.Profit))
	b.WriteString(fmt.Sprintf(":PARTIAL: %t\n", c.Partial))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", c.Reason))
	b.WriteString(fmt.Sprintf(":TIME: %s\n", c.Time.UTC().Format(time.RFC3339)))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatClosesOrg renders multiple closes separated by blank lines.
func FormatClosesOrg(closes []CloseRecord) string {
	var b strings.Builder
	for i, c := range closes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatCloseOrg(c))
	}
	return b.String()
}

// FormatDaySummary renders a one-day digest for the CLI.
func FormatDaySummary(s DaySummary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("* %s\n", s.Day))
	b.WriteString(fmt.Sprintf("- closes: %d (partial %d)\n", s.Closes, s.Partials))
	b.WriteString(fmt.Sprintf("- realized: %.2f\n", s.RealizedPL))
	b.WriteString(fmt.Sprintf("- blocked orders: %d\n", s.Blocks))
	for code, n := range s.BlocksByTag {
		b.WriteString(fmt.Sprintf("  - %s: %d\n", code, n))
	}
	return b.String()
}
