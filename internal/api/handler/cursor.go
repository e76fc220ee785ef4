package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/SSP-Group-Of-Companies/TraxYard-sub001/internal/movement"
)

// DecodeMovementCursor unpacks an opaque browse cursor. Empty input
// means the first page. The encoding is URL-safe so the cursor can ride
// in a query parameter untouched.
func DecodeMovementCursor(cursorStr string) (*movement.ListCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var eventAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &eventAt); err != nil {
		return nil, fmt.Errorf("invalid event time in cursor: %w", err)
	}

	return &movement.ListCursor{
		EventAt:    time.Unix(0, eventAt),
		MovementID: parts[1],
	}, nil
}

// EncodeMovementCursor packs the keyset position after a page's last
// record into an opaque string.
func EncodeMovementCursor(cursor *movement.ListCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.EventAt.UnixNano(), cursor.MovementID)
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}
