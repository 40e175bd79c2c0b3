package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kilianp07/haulplan/core/model"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// Render writes the site, truck and totals tables to w.
func Render(w io.Writer, s Summary) error {
	sites := newTable("site", "stockpile", "plan", "whole", "half", "remaining", "trips", "hours", "profit", "vol/h", "trucks")
	for _, r := range s.Sites {
		sites.Row(r.SiteID, num(r.Stockpile), num(r.Planned), num(r.WholeTrip), num(r.HalfTrip),
			num(r.Remaining), num(r.Trips), num(r.Hours), r.Profit.StringFixed(2), num(r.Efficiency),
			strings.Join(r.Trucks, " "))
	}
	trucks := newTable("truck", "available", "used", "idle", "trips", "volume")
	for _, r := range s.Trucks {
		trucks.Row(r.TruckID, num(r.Available), num(r.Used), num(r.Idle), num(r.Trips), num(r.Volume))
	}
	unassigned := strings.Join(s.Totals.Unassigned, " ")
	if unassigned == "" {
		unassigned = "-"
	}
	totals := newTable("status", "trips", "volume", "profit", "trucks used", "unassigned").
		Row(s.Totals.Status, num(s.Totals.Trips), s.Totals.Volume.StringFixed(2), s.Totals.Profit.StringFixed(2),
			strconv.Itoa(s.Totals.TrucksUsed), unassigned)

	var b strings.Builder
	if s.Totals.Status == model.StatusDegraded.String() {
		b.WriteString(warnStyle.Render("warning: search limit reached, plan is feasible but not proven optimal"))
		b.WriteString("\n")
	}
	for _, part := range []struct {
		title string
		t     *table.Table
	}{{"Sites", sites}, {"Trucks", trucks}, {"Totals", totals}} {
		b.WriteString(titleStyle.Render(part.title))
		b.WriteString("\n")
		b.WriteString(part.t.Render())
		b.WriteString("\n")
	}
	_, err := fmt.Fprint(w, b.String())
	return err
}
