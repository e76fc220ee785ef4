package export

import (
	"fmt"
	"strings"
)

// Column identifies one exportable attribute of a movement record. The
// vocabulary is closed: submission rejects any token outside it.
type Column string

const (
	ColumnDate     Column = "date"
	ColumnTrailer  Column = "trailer"
	ColumnMovement Column = "movement"
	ColumnYard     Column = "yard"
	ColumnCarrier  Column = "carrier"
	ColumnDriver   Column = "driver"
	ColumnTruck    Column = "truck"
	ColumnLoaded   Column = "loaded"
	ColumnSeal     Column = "seal"
	ColumnDoor     Column = "door"
	ColumnDamaged  Column = "damaged"
	ColumnNotes    Column = "notes"
)

// DefaultColumns is the ordered selection used when a request names no
// columns.
var DefaultColumns = []Column{
	ColumnDate,
	ColumnTrailer,
	ColumnMovement,
	ColumnYard,
	ColumnCarrier,
	ColumnDriver,
	ColumnTruck,
	ColumnLoaded,
	ColumnSeal,
	ColumnDoor,
	ColumnDamaged,
	ColumnNotes,
}

var columnLabels = map[Column]string{
	ColumnDate:     "Date",
	ColumnTrailer:  "Trailer",
	ColumnMovement: "Movement",
	ColumnYard:     "Yard",
	ColumnCarrier:  "Carrier",
	ColumnDriver:   "Driver",
	ColumnTruck:    "Truck",
	ColumnLoaded:   "Load Status",
	ColumnSeal:     "Seal #",
	ColumnDoor:     "Door",
	ColumnDamaged:  "Damaged",
	ColumnNotes:    "Notes",
}

// Label returns the header text shown for the column. Unknown columns
// render an empty header rather than failing; they can only occur on a
// message that bypassed submission validation.
func (c Column) Label() string {
	return columnLabels[c]
}

// Valid reports whether the column belongs to the vocabulary
func (c Column) Valid() bool {
	_, ok := columnLabels[c]
	return ok
}

// ColumnNames lists the vocabulary in default order, for error messages
func ColumnNames() []string {
	names := make([]string, len(DefaultColumns))
	for i, c := range DefaultColumns {
		names[i] = string(c)
	}
	return names
}

// ParseColumns turns a comma-separated token list into an ordered column
// selection. An empty list selects DefaultColumns; an unknown token fails
// with the full vocabulary in the message.
func ParseColumns(list string) ([]Column, error) {
	if strings.TrimSpace(list) == "" {
		return append([]Column(nil), DefaultColumns...), nil
	}

	parts := strings.Split(list, ",")
	columns := make([]Column, 0, len(parts))
	for _, part := range parts {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			continue
		}

		col := Column(token)
		if !col.Valid() {
			return nil, fmt.Errorf("unknown column %q (valid columns: %s)", token, strings.Join(ColumnNames(), ", "))
		}
		columns = append(columns, col)
	}

	if len(columns) == 0 {
		return append([]Column(nil), DefaultColumns...), nil
	}

	return columns, nil
}

// Labels maps a column selection to its header row
func Labels(columns []Column) []string {
	labels := make([]string, len(columns))
	for i, c := range columns {
		labels[i] = c.Label()
	}
	return labels
}
