package movement

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// CanonicalTimeZone is the zone all date filters and exported timestamps
// are interpreted in, no matter where the service itself runs. Yard
// operations are dispatched out of Ontario.
const CanonicalTimeZone = "America/Toronto"

var canonicalLocation = mustLoadLocation(CanonicalTimeZone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load time zone %s: %v", name, err))
	}
	return loc
}

// Location returns the canonical display/filter time zone
func Location() *time.Location {
	return canonicalLocation
}

// DateBounds converts inclusive civil dates (YYYY-MM-DD) into the
// half-open instant range [startOfDay(from), startOfDay(to+1day)) in the
// canonical zone. Adding a civil day rather than 24 hours keeps DST
// transition days correct. Either bound may be empty.
func DateBounds(from, to string) (*time.Time, *time.Time, error) {
	var start, end *time.Time

	if from != "" {
		day, err := time.ParseInLocation("2006-01-02", from, canonicalLocation)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date_from %q (expected YYYY-MM-DD): %w", from, err)
		}
		start = &day
	}

	if to != "" {
		day, err := time.ParseInLocation("2006-01-02", to, canonicalLocation)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid date_to %q (expected YYYY-MM-DD): %w", to, err)
		}
		next := day.AddDate(0, 0, 1)
		end = &next
	}

	return start, end, nil
}

// Filter is the one predicate shared by counting, streaming, and
// browsing queries. Zero values mean "no constraint".
type Filter struct {
	Query     string     // case-insensitive substring across trailer, carrier, driver, seal
	Type      string     // movement type equality
	Yard      string     // yard code equality
	DateStart *time.Time // inclusive instant bound on event_at
	DateEnd   *time.Time // exclusive instant bound on event_at
	HasDamage bool       // at least one DAMAGE photo attached
	HasSeal   bool       // non-empty seal number
}

// whereClause renders the filter as WHERE conditions with positional
// args. Placeholder numbering starts at 1; callers appending their own
// placeholders continue from len(args)+1.
func (f *Filter) whereClause() (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString(" WHERE 1=1")

	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := len(args)
		fmt.Fprintf(&sb,
			" AND (m.trailer_number ILIKE $%d OR m.carrier ILIKE $%d OR m.driver_name ILIKE $%d OR m.seal_number ILIKE $%d)",
			n, n, n, n,
		)
	}

	if f.Type != "" {
		args = append(args, f.Type)
		fmt.Fprintf(&sb, " AND m.movement_type = $%d", len(args))
	}

	if f.Yard != "" {
		args = append(args, f.Yard)
		fmt.Fprintf(&sb, " AND m.yard_code = $%d", len(args))
	}

	if f.DateStart != nil {
		args = append(args, *f.DateStart)
		fmt.Fprintf(&sb, " AND m.event_at >= $%d", len(args))
	}

	if f.DateEnd != nil {
		args = append(args, *f.DateEnd)
		fmt.Fprintf(&sb, " AND m.event_at < $%d", len(args))
	}

	if f.HasDamage {
		sb.WriteString(" AND EXISTS (SELECT 1 FROM movement_photos p WHERE p.movement_id = m.movement_id AND p.kind = '" + PhotoKindDamage + "')")
	}

	if f.HasSeal {
		sb.WriteString(" AND m.seal_number IS NOT NULL AND m.seal_number <> ''")
	}

	return sb.String(), args
}

// sortColumns is the allow-list mapping logical sort keys to projection
// columns. Anything outside it falls back to event time.
var sortColumns = map[string]string{
	"date":     "m.event_at",
	"trailer":  "m.trailer_number",
	"yard":     "m.yard_code",
	"carrier":  "m.carrier",
	"movement": "m.movement_type",
}

// OrderBy resolves a sort key/direction pair to a deterministic ORDER BY
// clause. The movement id tiebreaker makes streaming and pagination
// order stable across calls even when the sort key repeats.
func OrderBy(sort, dir string) string {
	col, ok := sortColumns[strings.ToLower(strings.TrimSpace(sort))]
	if !ok {
		col = "m.event_at"
	}

	direction := "DESC"
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		direction = "ASC"
	}

	return fmt.Sprintf(" ORDER BY %s %s, m.movement_id %s", col, direction, direction)
}
