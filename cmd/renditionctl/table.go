package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/agleyzer/renditionctl/internal/rendition"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
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

// renderRenditions formats representations for -list.
func renderRenditions(reps []rendition.Representation) string {
	if len(reps) == 0 {
		return "No selectable renditions\n"
	}

	rows := make([][]string, 0, len(reps))
	for _, rep := range reps {
		resolution := "-"
		if rep.Width != nil && rep.Height != nil {
			resolution = fmt.Sprintf("%dx%d", *rep.Width, *rep.Height)
		}
		bandwidth := "-"
		if rep.Bandwidth != nil {
			bandwidth = strconv.Itoa(*rep.Bandwidth)
		}
		frameRate := "-"
		if rep.FrameRate != nil {
			frameRate = strconv.FormatFloat(*rep.FrameRate, 'f', -1, 64)
		}
		enabled := "yes"
		if !rep.Enabled() {
			enabled = "no"
		}
		rows = append(rows, []string{rep.ID, resolution, bandwidth, frameRate, rep.Codecs, enabled})
	}

	return renderTable(
		[]string{"ID", "Resolution", "Bandwidth", "FPS", "Codecs", "Enabled"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	) + "\n"
}
