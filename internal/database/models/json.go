package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap maps to a jsonb column. Used for rule condition payloads and the
// deferred-condition snapshots copied onto commission records.
type JSONMap map[string]interface{}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return fmt.Errorf("failed to scan JSONMap: %v", value)
		}
	}
	return json.Unmarshal(bytes, m)
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
