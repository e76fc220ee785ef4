package movement

import "time"

// Movement types guards can log
const (
	TypeIn         = "IN"
	TypeOut        = "OUT"
	TypeInspection = "INSPECTION"
)

// ValidType reports whether t is one of the recognized movement types
func ValidType(t string) bool {
	switch t {
	case TypeIn, TypeOut, TypeInspection:
		return true
	}
	return false
}

// Photo kinds. A DAMAGE photo flips the record's Damaged flag; anything
// else is attached without further meaning.
const (
	PhotoKindDamage  = "DAMAGE"
	PhotoKindGeneral = "GENERAL"
)

// Record is one trailer movement event, projected to exactly the fields
// the portal displays and exports. Optional text fields are never NULL
// here; the projection coalesces them to empty strings.
type Record struct {
	MovementID    string    `db:"movement_id"`
	EventAt       time.Time `db:"event_at"`
	MovementType  string    `db:"movement_type"`
	TrailerNumber string    `db:"trailer_number"`
	YardCode      string    `db:"yard_code"`
	Carrier       string    `db:"carrier"`
	DriverName    string    `db:"driver_name"`
	TruckNumber   string    `db:"truck_number"`
	Loaded        bool      `db:"loaded"`
	SealNumber    string    `db:"seal_number"`
	DockDoor      string    `db:"dock_door"`
	Notes         string    `db:"notes"`
	Damaged       bool      `db:"damaged"`
}

// Photo is an attachment on a movement event
type Photo struct {
	PhotoID    string `db:"photo_id"`
	MovementID string `db:"movement_id"`
	Kind       string `db:"kind"`
	URL        string `db:"url"`
}
