package models

import (
	"encoding/json"
	"strconv"
)

// Level is the ordinal occupancy bucket derived from aggregate device counts.
// The zero value means no measurement exists yet.
type Level int

// LevelUndefined is reported while the measurement store is empty.
const LevelUndefined Level = 0

// Defined reports whether the level was computed from at least one sensor.
func (l Level) Defined() bool {
	return l > LevelUndefined
}

func (l Level) String() string {
	if !l.Defined() {
		return "undefined"
	}
	return strconv.Itoa(int(l))
}

// MarshalJSON encodes an undefined level as null.
func (l Level) MarshalJSON() ([]byte, error) {
	if !l.Defined() {
		return []byte("null"), nil
	}
	return json.Marshal(int(l))
}

// UnmarshalJSON accepts null or an integer.
func (l *Level) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = LevelUndefined
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n < 0 {
		n = 0
	}
	*l = Level(n)
	return nil
}
