package models

import (
	"encoding/json"
	"strings"
)

// Room represents a physical or virtual location hosting agenda items
type Room struct {
	Name     string     `json:"name"`
	Capacity FlexString `json:"capacity"`
}

// UnmarshalJSON decodes a room leniently; a non-object room is blank
func (r *Room) UnmarshalJSON(data []byte) error {
	*r = Room{}
	if !isObject(data) {
		return nil
	}

	var raw struct {
		Name     FlexString `json:"name"`
		Capacity FlexString `json:"capacity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	r.Name = raw.Name.String()
	r.Capacity = raw.Capacity
	return nil
}

// DisplayName returns the room name without surrounding whitespace
func (r Room) DisplayName() string {
	return strings.TrimSpace(r.Name)
}
