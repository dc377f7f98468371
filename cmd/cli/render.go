package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/SampleTree/pkg/models"
	"github.com/himanishpuri/SampleTree/pkg/sampletree"
	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// newTable returns a rounded table writer with the given title and header.
func newTable(title string, header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title != "" {
		tw.SetTitle("%s", title)
	}
	tw.AppendHeader(table.Row(header))
	return tw
}

// rightAligned right-aligns the named columns, keeping headers left.
func rightAligned(names ...string) []table.ColumnConfig {
	configs := make([]table.ColumnConfig, 0, len(names))
	for _, name := range names {
		configs = append(configs, table.ColumnConfig{
			Name:        name,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	return configs
}

// renderRecord prints the header line and one table per non-empty direction
func renderRecord(rec *models.LineageRecord) string {
	var b strings.Builder

	b.WriteString(rec.Title)
	if rec.Artist != "" {
		b.WriteString(" by " + rec.Artist)
	}
	if rec.Year != "" {
		b.WriteString(" (" + rec.Year + ")")
	}
	b.WriteString("\n")

	for _, section := range []struct {
		name string
		refs []models.SampleRef
	}{
		{sampletree.SamplesGroup, rec.Samples},
		{sampletree.SampledByGroup, rec.SampledBy},
	} {
		if len(section.refs) == 0 {
			fmt.Fprintf(&b, "\n%s: none known\n", section.name)
			continue
		}
		tw := newTable(fmt.Sprintf("%s (%s)", section.name, humanize.Comma(int64(len(section.refs)))),
			"#", "Track", "Artists")
		for i, ref := range section.refs {
			tw.AppendRow(table.Row{i + 1, ref.TrackName, strings.Join(ref.Artists, ", ")})
		}
		tw.SetColumnConfigs(rightAligned("#"))
		b.WriteString("\n" + tw.Render() + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderTree draws a TreeNode as a connected list
func renderTree(root models.TreeNode) string {
	lw := list.NewWriter()
	lw.SetStyle(list.StyleConnectedRounded)
	lw.AppendItem(root.Name)
	appendChildren(lw, root.Children)
	return lw.Render()
}

func appendChildren(lw list.Writer, children []models.TreeNode) {
	if len(children) == 0 {
		return
	}
	lw.Indent()
	for _, child := range children {
		lw.AppendItem(child.Name)
		appendChildren(lw, child.Children)
	}
	lw.UnIndent()
}

func renderSongs(songs []models.LineageRecord) string {
	tw := newTable(fmt.Sprintf("%s song(s)", humanize.Comma(int64(len(songs)))),
		"Title", "Artist", "Year", "Samples", "Sampled by")
	var samples, sampledBy int
	for _, song := range songs {
		samples += len(song.Samples)
		sampledBy += len(song.SampledBy)
		tw.AppendRow(table.Row{
			song.Title,
			song.Artist,
			song.Year,
			humanize.Comma(int64(len(song.Samples))),
			humanize.Comma(int64(len(song.SampledBy))),
		})
	}
	tw.AppendFooter(table.Row{"Total", "", "", humanize.Comma(int64(samples)), humanize.Comma(int64(sampledBy))})
	tw.SetColumnConfigs(rightAligned("Samples", "Sampled by"))
	return tw.Render()
}

func renderHistory(entries []models.HistoryEntry, now time.Time) string {
	tw := newTable("Recent lookups", "When", "Song", "Client", "Branches")
	for _, e := range entries {
		tw.AppendRow(table.Row{
			humanize.RelTime(e.Timestamp, now, "ago", "from now"),
			e.RootSong,
			e.IP,
			len(e.TreeSnapshot.Children),
		})
	}
	tw.SetColumnConfigs(rightAligned("Branches"))
	return tw.Render()
}

func renderStats(stats sampletree.Stats) string {
	tw := newTable("", "Counter", "Value")
	tw.AppendRows([]table.Row{
		{"Songs", humanize.Comma(stats.Songs)},
		{"Lookups", humanize.Comma(stats.Lookups)},
	})
	tw.SetColumnConfigs(rightAligned("Value"))
	return tw.Render()
}
