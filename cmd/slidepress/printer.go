package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"slidepress/internal/acronyms"
	"slidepress/internal/models"
	"slidepress/internal/schedule"
	"slidepress/internal/templates"
	"slidepress/internal/toc"
)

// formatSeconds prints seconds as m:ss, or h:mm:ss from one hour on.
func formatSeconds(seconds float64) string {
	total := int(seconds + 0.5)
	h, m, s := total/3600, total/60%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// PrintTableOfSchedule writes the time slices to the given writer as an ASCII
// table. Begin and End are offsets into a presentation of total seconds.
func PrintTableOfSchedule(writer io.Writer, slices []schedule.TimeSlice, total float64) {
	table := tablewriter.NewWriter(writer)

	table.SetHeader([]string{"Slide", "Duration", "Ratio", "Begin", "End"})

	for _, s := range slices {
		table.Append([]string{
			strconv.Itoa(s.SlideNo),
			formatSeconds(s.Seconds),
			fmt.Sprintf("%.1f%%", s.Ratio*100),
			formatSeconds(s.BeginRatio * total),
			formatSeconds(s.EndRatio * total),
		})
	}

	table.SetFooter([]string{"", formatSeconds(total), "", "", ""})
	table.Render()
}

// PrintTableOfTOC writes the entries of a frozen TOC to the given writer as an
// ASCII table.
func PrintTableOfTOC(writer io.Writer, entries []toc.Entry) {
	table := tablewriter.NewWriter(writer)

	table.SetHeader([]string{"Number", "Heading", "Pages"})
	table.SetAutoWrapText(false)

	for _, e := range entries {
		pages := make([]string, len(e.Pages))
		for i, p := range e.Pages {
			pages[i] = strconv.Itoa(p)
		}
		table.Append([]string{
			e.FullNumber,
			strings.Repeat("  ", e.Depth-1) + e.Text,
			strings.Join(pages, ", "),
		})
	}

	table.Render()
}

// PrintTableOfAcronyms writes the acronyms to the given writer as an ASCII
// table.
func PrintTableOfAcronyms(writer io.Writer, entries []acronyms.Entry) {
	table := tablewriter.NewWriter(writer)

	table.SetHeader([]string{"ID", "Acronym", "Text", "URI"})

	for _, e := range entries {
		table.Append([]string{e.ID, e.Acronym, e.Text, e.URI})
	}

	table.Render()
}

// PrintTableOfCacheStats writes the cache index summary per renderer to the
// given writer as an ASCII table.
func PrintTableOfCacheStats(writer io.Writer, stats []*models.CacheStats) {
	table := tablewriter.NewWriter(writer)

	table.SetHeader([]string{"Renderer", "Entries", "Size", "Oldest", "Newest"})

	var entries int
	var size int64
	for _, s := range stats {
		entries += s.Entries
		size += s.Size
		table.Append([]string{
			s.Renderer,
			strconv.Itoa(s.Entries),
			formatBytes(s.Size),
			s.Oldest.Local().Format(time.RFC3339),
			s.Newest.Local().Format(time.RFC3339),
		})
	}

	table.SetFooter([]string{"Total", strconv.Itoa(entries), formatBytes(size), "", ""})
	table.Render()
}

// PrintTableOfBuilds writes build records to the given writer as an ASCII
// table.
func PrintTableOfBuilds(writer io.Writer, builds []*models.BuildRecord) {
	table := tablewriter.NewWriter(writer)

	table.SetHeader([]string{"ID", "Source", "Status", "Slides", "Started", "Duration", "Error"})

	for _, b := range builds {
		table.Append([]string{
			b.ID,
			b.Source,
			string(b.Status),
			strconv.Itoa(b.SlideCount),
			b.StartedAt.Local().Format(time.RFC3339),
			b.Duration().Round(time.Millisecond).String(),
			b.Error,
		})
	}

	table.Render()
}

// PrintTableOfStyleParameters writes the options a template style accepts to
// the given writer as an ASCII table.
func PrintTableOfStyleParameters(writer io.Writer, cfg *templates.Config) {
	table := tablewriter.NewWriter(writer)

	table.SetHeader([]string{"Option", "Type", "Default", "Description"})

	for _, name := range cfg.ParameterNames() {
		p := cfg.Parameters[name]
		typ := p.Type
		if len(p.Choices) > 0 {
			typ += " (" + strings.Join(p.Choices, ", ") + ")"
		}
		def := ""
		if p.Default != nil {
			def = fmt.Sprint(p.Default)
		}
		table.Append([]string{name, typ, def, p.Description})
	}

	table.Render()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
