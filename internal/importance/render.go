package importance

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// Render writes the top n flags and the remaining bucket to w.
func (r *Report) Render(w io.Writer, n int, format Format) error {
	rows, rest := r.Top(n)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Flag", "Impact (s)", "Importance"})
	for _, row := range rows {
		t.AppendRow(table.Row{row.Flag, fmt.Sprintf("%.4f", row.Seconds), fmt.Sprintf("%.1f%%", row.Percent)})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d other flags", rest.Count),
		fmt.Sprintf("%.4f", rest.Seconds),
		fmt.Sprintf("%.1f%%", rest.Percent),
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Impact (s)", Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Name: "Importance", Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	switch format {
	case FormatTable, "":
		t.Render()
	case FormatMarkdown:
		t.RenderMarkdown()
	case FormatCSV:
		t.RenderCSV()
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
	return nil
}
