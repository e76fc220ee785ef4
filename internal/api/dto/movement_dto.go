package dto

// LogMovementRequest is the POST /api/v1/movements body logged by yard
// guards. eventAt defaults to the current time when omitted.
type LogMovementRequest struct {
	TrailerNumber string     `json:"trailerNumber" binding:"required"`
	Type          string     `json:"type" binding:"required"`
	Yard          string     `json:"yard" binding:"required"`
	EventAt       string     `json:"eventAt"`
	Carrier       string     `json:"carrier"`
	DriverName    string     `json:"driverName"`
	TruckNumber   string     `json:"truckNumber"`
	Loaded        bool       `json:"loaded"`
	SealNumber    string     `json:"sealNumber"`
	DockDoor      string     `json:"dockDoor"`
	Notes         string     `json:"notes"`
	Photos        []PhotoDTO `json:"photos"`
}

type PhotoDTO struct {
	Kind string `json:"kind"`
	URL  string `json:"url" binding:"required"`
}

// ListMovementsRequest is the GET /api/v1/movements query string.
// Results are always newest-first; cursor continues a previous page.
type ListMovementsRequest struct {
	Query     string `form:"query"`
	Type      string `form:"type"`
	Yard      string `form:"yard"`
	DateFrom  string `form:"dateFrom"`
	DateTo    string `form:"dateTo"`
	HasDamage bool   `form:"hasDamage"`
	HasSeal   bool   `form:"hasSeal"`
	PageSize  int    `form:"pageSize"`
	Cursor    string `form:"cursor"`
}

type MovementDTO struct {
	MovementID    string `json:"movementId"`
	EventAt       string `json:"eventAt"`
	Type          string `json:"type"`
	TrailerNumber string `json:"trailerNumber"`
	Yard          string `json:"yard"`
	Carrier       string `json:"carrier,omitempty"`
	DriverName    string `json:"driverName,omitempty"`
	TruckNumber   string `json:"truckNumber,omitempty"`
	Loaded        bool   `json:"loaded"`
	SealNumber    string `json:"sealNumber,omitempty"`
	DockDoor      string `json:"dockDoor,omitempty"`
	Notes         string `json:"notes,omitempty"`
	Damaged       bool   `json:"damaged"`
}

type ListMovementsResponse struct {
	Movements  []MovementDTO `json:"movements"`
	NextCursor string        `json:"nextCursor,omitempty"`
}
