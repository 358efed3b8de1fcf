package calendar

import (
	"time"

	"roomcal/internal/dates"
	"roomcal/internal/model"
)

// Lookup answers whether a slot is reserved.
type Lookup interface {
	Lookup(date time.Time, hour int) (model.Reservation, bool)
}

// Grid is the render model of one week: a label column plus seven date
// columns, one row per hour.
type Grid struct {
	Columns []Column
	Rows    []Row
}

type Column struct {
	Date    time.Time
	DateKey string
	Label   string
}

type Row struct {
	Hour  int
	Label string
	Cells []Cell
}

// Cell is one slot. Reserved cells carry the reservation and are not
// actionable.
type Cell struct {
	Date     time.Time
	DateKey  string
	Hour     int
	Reserved bool
	Title    string
	Content  string
}

// Slot returns the cell's (date, hour) pair.
func (c Cell) Slot() model.Slot {
	return model.Slot{Date: c.Date, Hour: c.Hour}
}

// BuildGrid projects the reservations visible through lookup onto days and
// the fixed hour rows. It keeps no reservation data of its own.
func BuildGrid(days []time.Time, lookup Lookup, locale dates.Locale) Grid {
	g := Grid{
		Columns: make([]Column, 0, len(days)),
	}
	for _, d := range days {
		g.Columns = append(g.Columns, Column{
			Date:    d,
			DateKey: dates.DateKey(d),
			Label:   locale.DisplayDate(d),
		})
	}

	for _, h := range dates.Hours() {
		row := Row{
			Hour:  h,
			Label: dates.FormatHourLabel(h),
			Cells: make([]Cell, 0, len(days)),
		}
		for _, d := range days {
			cell := Cell{Date: d, DateKey: dates.DateKey(d), Hour: h}
			if r, ok := lookup.Lookup(d, h); ok {
				cell.Reserved = true
				cell.Title = r.Title
				cell.Content = r.Content
			}
			row.Cells = append(row.Cells, cell)
		}
		g.Rows = append(g.Rows, row)
	}
	return g
}

// Cell returns the cell at (date, hour), if the grid has one.
func (g Grid) Cell(date time.Time, hour int) (Cell, bool) {
	key := dates.DateKey(date)
	for _, row := range g.Rows {
		if row.Hour != hour {
			continue
		}
		for _, c := range row.Cells {
			if c.DateKey == key {
				return c, true
			}
		}
	}
	return Cell{}, false
}

// Reserved counts reserved cells.
func (g Grid) Reserved() int {
	n := 0
	for _, row := range g.Rows {
		for _, c := range row.Cells {
			if c.Reserved {
				n++
			}
		}
	}
	return n
}
