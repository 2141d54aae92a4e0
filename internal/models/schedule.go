package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNotAnObject is returned when a schedule document is not a JSON object
var ErrNotAnObject = errors.New("document is not a JSON object")

// Schedule is the agenda/room document of a conference. Decoding is lenient
// below the top level: wrong-typed sections and entries decode as empty
// values instead of failing the whole document.
type Schedule struct {
	Rooms       map[string]Room       `json:"rooms"`
	Agenda      map[string]AgendaItem `json:"agenda"`
	MainFocuses map[string]string     `json:"mainFocuses"`
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Schedule) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if !isObject(data) {
		return ErrNotAnObject
	}

	var raw struct {
		Rooms       json.RawMessage `json:"rooms"`
		Agenda      json.RawMessage `json:"agenda"`
		MainFocuses json.RawMessage `json:"mainFocuses"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	s.Rooms = decodeObjectMap[Room](raw.Rooms)
	s.Agenda = decodeObjectMap[AgendaItem](raw.Agenda)

	focuses := decodeObjectMap[FlexString](raw.MainFocuses)
	s.MainFocuses = make(map[string]string, len(focuses))
	for k, v := range focuses {
		s.MainFocuses[k] = v.String()
	}
	return nil
}

// AgendaItem is a scheduled session. Start and End are epoch seconds.
type AgendaItem struct {
	RoomID      FlexString `json:"roomId"`
	Title       string     `json:"title"`
	Start       int64      `json:"start"`
	End         int64      `json:"end"`
	MainFocus   FlexString `json:"mainFocus,omitempty"`
	EventSlotID FlexString `json:"eventSlotId,omitempty"`
	Speaker     *Speaker   `json:"speaker,omitempty"`
	CoSpeakers  []Speaker  `json:"coSpeaker,omitempty"`
}

// UnmarshalJSON decodes an agenda entry field by field. A field of the wrong
// type is treated as absent; an entry that is not an object decodes empty
// and is later dropped for having no title.
func (a *AgendaItem) UnmarshalJSON(data []byte) error {
	*a = AgendaItem{}
	if !isObject(data) {
		return nil
	}

	var raw struct {
		RoomID      FlexString      `json:"roomId"`
		Title       FlexString      `json:"title"`
		Start       FlexInt         `json:"start"`
		End         FlexInt         `json:"end"`
		MainFocus   FlexString      `json:"mainFocus"`
		EventSlotID FlexString      `json:"eventSlotId"`
		Speaker     json.RawMessage `json:"speaker"`
		CoSpeakers  json.RawMessage `json:"coSpeaker"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	a.RoomID = raw.RoomID
	a.Title = raw.Title.String()
	a.Start = int64(raw.Start)
	a.End = int64(raw.End)
	a.MainFocus = raw.MainFocus
	a.EventSlotID = raw.EventSlotID
	a.Speaker = decodeSpeaker(raw.Speaker)
	a.CoSpeakers = decodeSpeakers(raw.CoSpeakers)
	return nil
}

// HasTitle reports whether the item carries a non-blank title
func (a AgendaItem) HasTitle() bool {
	return strings.TrimSpace(a.Title) != ""
}

// StartTime converts the start epoch seconds to a time
func (a AgendaItem) StartTime() time.Time {
	return time.Unix(a.Start, 0)
}

// EndTime converts the end epoch seconds to a time
func (a AgendaItem) EndTime() time.Time {
	return time.Unix(a.End, 0)
}

// Speakers returns the primary speaker followed by any co-speakers
func (a AgendaItem) Speakers() []Speaker {
	speakers := make([]Speaker, 0, len(a.CoSpeakers)+1)
	if a.Speaker != nil {
		speakers = append(speakers, *a.Speaker)
	}
	return append(speakers, a.CoSpeakers...)
}

// StreamName looks up the display name of a focus tag, empty if unknown
func (s *Schedule) StreamName(focus string) string {
	if s == nil || focus == "" {
		return ""
	}
	return s.MainFocuses[focus]
}
