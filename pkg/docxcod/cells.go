package docxcod

import (
	"sort"

	"github.com/xuri/excelize/v2"
)

// CellRecord is one non-empty worksheet cell.
type CellRecord struct {
	Address string
	Value   string
}

// Column returns the column letters of the address, or "" if it is malformed.
func (c CellRecord) Column() string {
	col, _, err := excelize.SplitCellName(c.Address)
	if err != nil {
		return ""
	}
	return col
}

// Row returns the row number of the address, or 0 if it is malformed.
func (c CellRecord) Row() int {
	_, row, err := excelize.SplitCellName(c.Address)
	if err != nil {
		return 0
	}
	return row
}

// CellLedger is the resolved view of a worksheet after template expansion.
type CellLedger []CellRecord

// compareAddresses orders column first, then row, the way "A2" < "A10" < "B1"
// reads. Addresses excelize cannot parse fall back to string order.
func compareAddresses(a, b string) int {
	ac, ar, errA := excelize.CellNameToCoordinates(a)
	bc, br, errB := excelize.CellNameToCoordinates(b)
	if errA != nil || errB != nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	}
	if ac != bc {
		return ac - bc
	}
	return ar - br
}

// Sort orders the ledger by address.
func (l CellLedger) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		return compareAddresses(l[i].Address, l[j].Address) < 0
	})
}

// Lookup finds the record at addr.
func (l CellLedger) Lookup(addr string) (CellRecord, bool) {
	for _, rec := range l {
		if rec.Address == addr {
			return rec, true
		}
	}
	return CellRecord{}, false
}

// Select returns the records backing a chart range formula.
//
// A single-cell range selects the record at that address, if any. A multi-cell
// range selects every record in the column at or below the start row, ordered
// by row, and keeps only the leading run of consecutive rows.
func (l CellLedger) Select(rf RangeFormula) CellLedger {
	if rf.IsSingleCell() {
		addr, err := excelize.CoordinatesToCellName(mustColumnNumber(rf.StartCol), rf.StartRow)
		if err != nil {
			return nil
		}
		if rec, ok := l.Lookup(addr); ok {
			return CellLedger{rec}
		}
		return nil
	}
	return l.SelectColumnRange(rf.StartCol, rf.StartRow)
}

// SelectColumnRange picks the contiguous block of records in col starting at
// startRow. A gap of more than one row ends the block.
func (l CellLedger) SelectColumnRange(col string, startRow int) CellLedger {
	var candidates CellLedger
	for _, rec := range l {
		if rec.Column() == col && rec.Row() >= startRow {
			candidates = append(candidates, rec)
		}
	}
	candidates.Sort()

	var selected CellLedger
	for i, rec := range candidates {
		if i > 0 && rec.Row()-candidates[i-1].Row() > 1 {
			break
		}
		selected = append(selected, rec)
	}
	return selected
}

func mustColumnNumber(col string) int {
	n, err := excelize.ColumnNameToNumber(col)
	if err != nil {
		return 0
	}
	return n
}
