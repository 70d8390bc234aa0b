package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"eci-results-crawler/internal/models"
)

func printSummary(w io.Writer, sum models.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("run " + sum.RunID)
	t.AppendRows([]table.Row{
		{"keys probed", sum.KeysProbed},
		{"keys accepted", sum.KeysAccepted},
		{"records", sum.Records},
		{"regions swept", sum.RegionsSwept},
		{"regions replayed", sum.RegionsReplayed},
		{"ceiling hits", len(sum.CeilingHits)},
		{"navigation failures", len(sum.NavigationFailures)},
		{"extraction failures", len(sum.ExtractionFailures)},
		{"duration", sum.Duration.Round(time.Second)},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(sum.NavigationFailures)+len(sum.ExtractionFailures)+len(sum.CeilingHits) == 0 {
		return
	}

	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.AppendHeader(table.Row{"Kind", "Key", "URL", "Error"})
	for _, f := range sum.NavigationFailures {
		ft.AppendRow(table.Row{"navigation", f.Key.String(), f.URL, f.Error})
	}
	for _, f := range sum.ExtractionFailures {
		ft.AppendRow(table.Row{"extraction", f.Key.String(), f.URL, f.Error})
	}
	for _, k := range sum.CeilingHits {
		ft.AppendRow(table.Row{"ceiling", k.String(), "", "region still valid at the probe ceiling"})
	}
	ft.SetColumnConfigs([]table.ColumnConfig{{Name: "Error", WidthMax: 60}})
	ft.SetStyle(table.StyleRounded)
	ft.Render()
}
