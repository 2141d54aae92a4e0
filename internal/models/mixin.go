package models

import (
	"bytes"
	"encoding/json"
)

// Mixin carries auxiliary stream metadata merged into the schedule at render time
type Mixin struct {
	Streams map[string]StreamMixin `json:"streams"`
}

// UnmarshalJSON requires a top-level object and decodes the streams leniently
func (m *Mixin) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if !isObject(data) {
		return ErrNotAnObject
	}

	var raw struct {
		Streams json.RawMessage `json:"streams"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Streams = decodeObjectMap[StreamMixin](raw.Streams)
	return nil
}

// StreamMixin holds the presentation details of a single stream
type StreamMixin struct {
	Icon string `json:"icon"`
}

// UnmarshalJSON decodes a stream entry; a non-object entry has no icon
func (s *StreamMixin) UnmarshalJSON(data []byte) error {
	*s = StreamMixin{}
	if !isObject(data) {
		return nil
	}

	var raw struct {
		Icon FlexString `json:"icon"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	s.Icon = raw.Icon.String()
	return nil
}

// StreamIcon looks up the icon glyph of a focus tag, empty if unknown
func (m *Mixin) StreamIcon(focus string) string {
	if m == nil || focus == "" {
		return ""
	}
	return m.Streams[focus].Icon
}
