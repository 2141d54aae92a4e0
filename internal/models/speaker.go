package models

import "encoding/json"

// Speaker is a person presenting an agenda item
type Speaker struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
}

type rawSpeaker struct {
	Name    FlexString `json:"name"`
	Company FlexString `json:"company"`
}

// decodeSpeaker returns nil unless raw is a speaker object
func decodeSpeaker(raw json.RawMessage) *Speaker {
	if !isObject(raw) {
		return nil
	}
	var s rawSpeaker
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &Speaker{Name: s.Name.String(), Company: s.Company.String()}
}

// decodeSpeakers keeps the speaker objects of a JSON array and skips anything else
func decodeSpeakers(raw json.RawMessage) []Speaker {
	if !isArray(raw) {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	var speakers []Speaker
	for _, entry := range entries {
		if s := decodeSpeaker(entry); s != nil {
			speakers = append(speakers, *s)
		}
	}
	return speakers
}
