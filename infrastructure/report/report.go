// Package report renders tournament reports as markdown tables or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ahrav/go-tourney/internal/application"
	"github.com/ahrav/go-tourney/internal/domain"
)

// Format selects the output encoding.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table or json)", s)
	}
}

// Writer renders reports. Labels maps competitor full names to display
// names; unknown ids are shown as-is.
type Writer struct {
	Format Format
	Labels map[string]string
}

// Write renders r to w.
func (rw Writer) Write(w io.Writer, r *application.Report) error {
	if rw.Format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	sections := []struct {
		title string
		write func(io.Writer, *application.Report) error
	}{
		{"Ranking", rw.ranking},
		{"Average consensus", func(w io.Writer, r *application.Report) error { return rw.consensus(w, r.Average) }},
		{"Referee error", rw.refereeErrors},
	}
	fmt.Fprintf(w, "%d texts, %d judges, %d competitors\n", r.Texts, len(r.Judges), len(r.Competitors))
	for _, s := range sections {
		fmt.Fprintf(w, "\n## %s\n\n", s.title)
		if err := s.write(w, r); err != nil {
			return fmt.Errorf("rendering %s: %w", s.title, err)
		}
	}
	return nil
}

func (rw Writer) label(id string) string {
	if l, ok := rw.Labels[id]; ok && l != "" {
		return l
	}
	return id
}

// ranking lists the overall score next to each judge's own ranking.
func (rw Writer) ranking(w io.Writer, r *application.Report) error {
	judges := slices.Sorted(maps.Keys(r.JudgeRankings))

	headers := append([]string{"#", "Competitor", "Score"}, judgeHeaders(rw, judges)...)
	table := newTable(w, headers)
	for i, e := range r.Ranking.Entries {
		row := []string{strconv.Itoa(i + 1), rw.label(e.ID), formatScore(e.Score)}
		for _, j := range judges {
			row = append(row, lookup(r.JudgeRankings[j], e.ID))
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func (rw Writer) consensus(w io.Writer, m *domain.ConsensusMatrix) error {
	ids := m.Roster().IDs()
	headers := []string{""}
	for _, id := range ids {
		headers = append(headers, rw.label(id))
	}

	table := newTable(w, headers)
	for i, row := range m.Rows() {
		cells := []string{rw.label(ids[i])}
		for j, v := range row {
			if i == j {
				cells = append(cells, "-")
				continue
			}
			cells = append(cells, formatCell(v))
		}
		if err := table.Append(cells); err != nil {
			return err
		}
	}
	return table.Render()
}

// refereeErrors marks values outside the Tukey fences with an asterisk.
func (rw Writer) refereeErrors(w io.Writer, r *application.Report) error {
	table := newTable(w, []string{"Judge", "MSE", "Mismatch", "Texts"})
	for _, re := range r.RefereeErrors {
		mse := strconv.FormatFloat(re.MSE, 'f', 4, 64)
		if slices.Contains(r.MSEOutliers, re.JudgeID) {
			mse += " *"
		}
		mismatch := strconv.FormatFloat(re.Mismatch, 'f', 2, 64)
		if slices.Contains(r.MismatchOutliers, re.JudgeID) {
			mismatch += " *"
		}
		if err := table.Append([]string{rw.label(re.JudgeID), mse, mismatch, strconv.Itoa(re.MSERuns)}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n* outside Tukey fences (MSE %.4f..%.4f, mismatch %.2f..%.2f)\n",
		r.MSEFences.Lower, r.MSEFences.Upper, r.MismatchFences.Lower, r.MismatchFences.Upper)
	return err
}

func judgeHeaders(rw Writer, judges []string) []string {
	out := make([]string, len(judges))
	for i, j := range judges {
		out[i] = "by " + rw.label(j)
	}
	return out
}

func lookup(t domain.ScoreTable, id string) string {
	if v, ok := t.Get(id); ok {
		return formatScore(v)
	}
	return "-"
}

func formatScore(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// formatCell shows the sentinels by name so they are not read as scores.
func formatCell(v float64) string {
	if v == float64(domain.OutcomeUnparseable) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{Left: tw.On, Top: tw.Off, Right: tw.On, Bottom: tw.Off},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}
