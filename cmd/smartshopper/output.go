package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/pauljones0/smart-shopper/internal/models"
	"github.com/pauljones0/smart-shopper/internal/session"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiBlue  = "\x1b[34m"

	maxNameWidth = 60
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

var offerHeaders = []string{"#", "Name", "Source", "Price", "Discount", "Sentiment"}
var offerAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft}

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSnapshot(w io.Writer, snap session.Snapshot, colorize bool) {
	if snap.Error != "" {
		msg := snap.Error
		if colorize {
			msg = ansiRed + msg + ansiReset
		}
		fmt.Fprintln(w, msg)
	}

	if len(snap.Offers) == 0 {
		fmt.Fprintf(w, "No offers found for %q.\n", snap.Query)
		return
	}

	for _, line := range renderSectionHeader("Cheapest picks", colorize) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, renderTable(offerHeaders, offerRows(snap.Recommendations), offerAligns))
	fmt.Fprintln(w)

	title := fmt.Sprintf("All offers (%d, sorted by %s)", len(snap.Offers), snap.SortMode)
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, renderTable(offerHeaders, offerRows(snap.Offers), offerAligns))
}

func offerRows(offers []models.Offer) [][]string {
	rows := make([][]string, 0, len(offers))
	for i, o := range offers {
		discount := ""
		if o.DiscountPercent() > 0 {
			discount = strconv.Itoa(o.DiscountPercent()) + "%"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			truncate(o.Name, maxNameWidth),
			string(o.Source),
			o.DisplayPrice,
			discount,
			sentimentCell(o.Sentiment),
		})
	}
	return rows
}

func sentimentCell(s *models.Sentiment) string {
	if s == nil {
		return "-"
	}
	if s.Verdict == models.VerdictNoReviews {
		return string(s.Verdict)
	}
	return fmt.Sprintf("%s %d%%", s.Verdict, s.Confidence)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
