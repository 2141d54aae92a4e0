package models

import (
	"bytes"
	"encoding/json"
)

// SessionDetails maps agenda ids to session abstracts taken from the
// conference agenda export (schedule.conference.days[].rooms{}[]).
type SessionDetails map[string]string

// UnmarshalJSON walks the agenda export and collects non-blank abstracts.
// Days, rooms or sessions of the wrong shape are skipped.
func (d *SessionDetails) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if !isObject(data) {
		return ErrNotAnObject
	}

	var doc struct {
		Schedule struct {
			Conference struct {
				Days json.RawMessage `json:"days"`
			} `json:"conference"`
		} `json:"schedule"`
	}
	// A mistyped schedule or conference leaves Days empty
	_ = json.Unmarshal(data, &doc)

	details := SessionDetails{}
	var days []json.RawMessage
	if isArray(doc.Schedule.Conference.Days) {
		_ = json.Unmarshal(doc.Schedule.Conference.Days, &days)
	}
	for _, day := range days {
		if !isObject(day) {
			continue
		}
		var dayDoc struct {
			Rooms json.RawMessage `json:"rooms"`
		}
		_ = json.Unmarshal(day, &dayDoc)

		for _, sessions := range decodeObjectMap[json.RawMessage](dayDoc.Rooms) {
			if !isArray(sessions) {
				continue
			}
			var entries []json.RawMessage
			_ = json.Unmarshal(sessions, &entries)
			for _, entry := range entries {
				details.add(entry)
			}
		}
	}

	*d = details
	return nil
}

func (d SessionDetails) add(entry json.RawMessage) {
	if !isObject(entry) {
		return
	}
	var session struct {
		ID       FlexInt    `json:"id"`
		Abstract FlexString `json:"abstract"`
	}
	if err := json.Unmarshal(entry, &session); err != nil || session.ID == 0 {
		return
	}
	if abstract := trimmed(session.Abstract); abstract != "" {
		d[formatID(session.ID)] = abstract
	}
}
