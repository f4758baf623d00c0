// Package report merges device outcomes into fleet-wide tables and writes them out.
package report

import (
	"github.com/nmslite/switchaudit/internal/auditor"
	"github.com/nmslite/switchaudit/internal/checks"
)

// Fixed leading columns.
const (
	ColumnHostname  = "hostname"
	ColumnAddress   = "address"
	ColumnInterface = "interface"
)

// Cell is one table value. A nil Value renders as a blank cell.
type Cell struct {
	Value *checks.Value
}

// Text returns a cell holding a plain string.
func Text(s string) Cell {
	v := checks.String(s)
	return Cell{Value: &v}
}

// Empty reports whether the cell is blank.
func (c Cell) Empty() bool {
	return c.Value == nil
}

// Interface returns the payload for sinks, nil for a blank cell.
func (c Cell) Interface() any {
	if c.Value == nil {
		return nil
	}
	return c.Value.Interface()
}

// MarshalJSON encodes a blank cell as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Value == nil {
		return []byte("null"), nil
	}
	return c.Value.MarshalJSON()
}

// UnmarshalJSON accepts null, a JSON bool or a JSON string.
func (c *Cell) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		c.Value = nil
		return nil
	}
	var v checks.Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	c.Value = &v
	return nil
}

// Table is a rectangular grid: every row has len(Columns) cells.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]Cell `json:"rows"`
}

// FailureRow describes a device without a report.
type FailureRow struct {
	Address string `json:"address"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

// AggregateReport is the fleet-wide result of a run.
type AggregateReport struct {
	Devices    Table        `json:"devices"`
	Interfaces Table        `json:"interfaces"`
	Failures   []FailureRow `json:"failures"`
}

// CheckColumnPrefix is prepended to a check name that equals a fixed column, so a check
// can never overwrite the identity cells of a row.
const CheckColumnPrefix = "check:"

// columnSet collects column names in first-seen order.
type columnSet struct {
	names []string
	index map[string]int
	fixed map[string]bool
}

func newColumnSet(fixed ...string) *columnSet {
	cs := &columnSet{index: make(map[string]int), fixed: make(map[string]bool)}
	for _, name := range fixed {
		cs.add(name)
		cs.fixed[name] = true
	}
	return cs
}

// checkColumn maps a check name to its column name.
func (cs *columnSet) checkColumn(name string) string {
	if cs.fixed[name] {
		return CheckColumnPrefix + name
	}
	return name
}

func (cs *columnSet) add(name string) {
	if _, ok := cs.index[name]; ok {
		return
	}
	cs.index[name] = len(cs.names)
	cs.names = append(cs.names, name)
}

// Aggregate builds the device and interface tables from successful outcomes and lists
// failures separately. Column order follows outcome order, so it is stable for a fixed
// input order. A device missing a column gets a blank cell.
func Aggregate(outcomes []auditor.Outcome) AggregateReport {
	devCols := newColumnSet(ColumnHostname, ColumnAddress)
	ifCols := newColumnSet(ColumnAddress, ColumnHostname, ColumnInterface)

	failures := []FailureRow{}
	var reports []*auditor.DeviceReport

	for _, o := range outcomes {
		if o.Report == nil {
			if o.Failure != nil {
				failures = append(failures, FailureRow{
					Address: o.Failure.Address,
					Stage:   string(o.Failure.Stage),
					Error:   o.Failure.Error(),
				})
			}
			continue
		}
		reports = append(reports, o.Report)
		for _, name := range o.Report.Checks.Keys() {
			devCols.add(devCols.checkColumn(name))
		}
		for _, iface := range o.Report.Interfaces.Interfaces() {
			res, _ := o.Report.Interfaces.Get(iface)
			for _, name := range res.Keys() {
				ifCols.add(ifCols.checkColumn(name))
			}
		}
	}

	agg := AggregateReport{
		Devices:    Table{Columns: devCols.names, Rows: [][]Cell{}},
		Interfaces: Table{Columns: ifCols.names, Rows: [][]Cell{}},
		Failures:   failures,
	}

	for _, r := range reports {
		row := make([]Cell, len(devCols.names))
		row[devCols.index[ColumnHostname]] = Text(r.Hostname)
		row[devCols.index[ColumnAddress]] = Text(r.Address)
		fillRow(row, devCols, &r.Checks)
		agg.Devices.Rows = append(agg.Devices.Rows, row)

		for _, iface := range r.Interfaces.Interfaces() {
			res, _ := r.Interfaces.Get(iface)
			row := make([]Cell, len(ifCols.names))
			row[ifCols.index[ColumnAddress]] = Text(r.Address)
			row[ifCols.index[ColumnHostname]] = Text(r.Hostname)
			row[ifCols.index[ColumnInterface]] = Text(iface)
			fillRow(row, ifCols, res)
			agg.Interfaces.Rows = append(agg.Interfaces.Rows, row)
		}
	}

	return agg
}

func fillRow(row []Cell, cols *columnSet, res *checks.Results) {
	for _, name := range res.Keys() {
		v, _ := res.Get(name)
		row[cols.index[cols.checkColumn(name)]] = Cell{Value: &v}
	}
}
