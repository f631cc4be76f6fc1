package mpostgres

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONBMap maps a jsonb column to a Go map. NULL scans to a nil map and a nil
// map stores as NULL.
type JSONBMap map[string]any

// Value implements driver.Valuer.
func (m JSONBMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}

	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONBMap) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into JSONBMap", src)
	}
}
