package command

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// WriteSummary renders the per-protocol session counters as a table for
// human operators. It goes to stderr in practice; stdout belongs to the
// command stream.
func (r *Reporter) WriteSummary(w io.Writer, colored bool) {
	title := "Session summary"
	if colored {
		title = color.New(color.FgCyan, color.Bold).Sprint(title)
	}
	fmt.Fprintf(w, "\n%s\n", title)

	if len(r.stats) == 0 {
		fmt.Fprintln(w, "No probes sent.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Protocol", "Sent", "Replies", "TTL-Expired", "Unreachable", "No-Reply", "Errors"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	protocols := make([]string, 0, len(r.stats))
	for protocol := range r.stats {
		protocols = append(protocols, protocol)
	}
	sort.Strings(protocols)

	for _, protocol := range protocols {
		s := r.stats[protocol]
		table.Append([]string{
			protocol,
			strconv.Itoa(s.Sent),
			strconv.Itoa(s.Replies),
			strconv.Itoa(s.TTLExpired),
			strconv.Itoa(s.Unreachable),
			strconv.Itoa(s.NoReply),
			strconv.Itoa(s.Errors),
		})
	}

	table.Render()
}
