package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/naver-ai/elmi-monorepo/internal/lyrics"
)

func newLinesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lines <song-id>",
		Short: "Validate a lyric sheet and print its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sheet, err := newSource(cfg).Sheet(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			idx, err := lyrics.NewIndex(sheet)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderLines(idx.Lines()))
			return nil
		},
	}
}

// renderLines tabulates lines in playback order.
func renderLines(lines []lyrics.LyricLine) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Line", "Verse", "Start", "End", "Tokens", "Lyric"})

	for i, l := range lines {
		tw.AppendRow(table.Row{
			strconv.Itoa(i + 1),
			l.ID,
			l.VerseID,
			lyrics.FormatDuration(l.StartMillis),
			lyrics.FormatDuration(l.EndMillis),
			strconv.Itoa(len(l.Timestamps)),
			l.Lyric,
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
