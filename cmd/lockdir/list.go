package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/bashhack/lockdir/internal/lock"
	"github.com/bashhack/lockdir/internal/registry"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorAlive   = lipgloss.Color("76")  // green
	colorDead    = lipgloss.Color("196") // bright red
	colorRemote  = lipgloss.Color("39")  // blue
	colorInvalid = lipgloss.Color("214") // orange
	colorMuted   = lipgloss.Color("242") // gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	cellStyle = lipgloss.NewStyle()

	stateStyles = map[lock.State]lipgloss.Style{
		lock.StateAlive:   lipgloss.NewStyle().Foreground(colorAlive),
		lock.StateDead:    lipgloss.NewStyle().Foreground(colorDead).Bold(true),
		lock.StateRemote:  lipgloss.NewStyle().Foreground(colorRemote),
		lock.StateInvalid: lipgloss.NewStyle().Foreground(colorInvalid),
	}

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

var listHeader = []string{"NAME", "PID", "HOST", "STATE", "AGE"}

// listRow is one line of lockdir list.
type listRow struct {
	Name  string
	PID   string
	Host  string
	State lock.State
	Age   string
}

func (r listRow) cells() []string {
	return []string{r.Name, r.PID, r.Host, r.State.String(), r.Age}
}

func listRows(reg *registry.Registry, checker lock.Checker, records []registry.Record, now time.Time) []listRow {
	rows := make([]listRow, 0, len(records))
	for _, rec := range records {
		row := listRow{
			Name:  rec.Name,
			PID:   "-",
			Host:  "-",
			State: lock.Classify(reg, checker, rec),
			Age:   "-",
		}
		if rec.Valid() {
			row.PID = strconv.Itoa(rec.Info.PID)
			row.Host = rec.Info.Host
		}
		if !rec.Created.IsZero() {
			row.Age = formatAge(now.Sub(rec.Created))
		}
		rows = append(rows, row)
	}
	return rows
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	return d.Truncate(time.Minute).String()
}

// renderPlain returns tab-separated rows for scripts.
func renderPlain(rows []listRow) []string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, strings.Join(row.cells(), "\t"))
	}
	return lines
}

// renderStyled returns an aligned, colored table for terminals.
func renderStyled(rows []listRow) []string {
	if len(rows) == 0 {
		return []string{mutedStyle.Render("No locks held")}
	}

	widths := make([]int, len(listHeader))
	for i, h := range listHeader {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, c := range row.cells() {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	line := func(cells []string, style func(i int) lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			parts[i] = cellStyle.Width(widths[i] + 2).Render(style(i).Render(c))
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " ")
	}

	lines := []string{line(listHeader, func(int) lipgloss.Style { return headerStyle })}
	for _, row := range rows {
		lines = append(lines, line(row.cells(), func(i int) lipgloss.Style {
			switch i {
			case 3:
				return stateStyles[row.State]
			case 4:
				return mutedStyle
			default:
				return lipgloss.NewStyle()
			}
		}))
	}
	return lines
}
