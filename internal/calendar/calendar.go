// Package calendar renders a schedule snapshot as an iCalendar feed so the
// agenda can be subscribed to from calendar clients.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/navikt/zagenda/internal/models"
	"github.com/navikt/zagenda/internal/timeline"
)

// ContentType is the media type of a rendered feed
const ContentType = "text/calendar; charset=utf-8"

// ProductID identifies the generator in the PRODID property
const ProductID = "-//navikt//zagenda//EN"

// Options describes the calendar as a whole
type Options struct {
	Name        string
	Description string
	// UIDPrefix namespaces event UIDs so feeds of different events never collide
	UIDPrefix string
	// AgendaURL is the public agenda page; empty disables event links
	AgendaURL string
	TimeZone  string
}

// Build creates one event per titled agenda item in the snapshot. Items
// without a title are skipped, just like on the timeline.
func Build(snapshot *models.Snapshot, opts Options) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.Description != "" {
		cal.SetDescription(opts.Description)
		cal.SetXWRCalDesc(opts.Description)
	}
	if opts.TimeZone != "" {
		cal.SetXWRTimezone(opts.TimeZone)
	}
	if opts.AgendaURL != "" {
		cal.SetUrl(opts.AgendaURL + "#eventDay.all")
	}

	if snapshot == nil {
		return cal
	}

	stamp := snapshot.FetchedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}

	schedule := &snapshot.Schedule
	for _, id := range timeline.OrderedKeys(schedule.Agenda) {
		item := schedule.Agenda[id]
		if !item.HasTitle() {
			continue
		}

		event := cal.AddEvent(EventUID(opts.UIDPrefix, id, item))
		event.SetDtStampTime(stamp.UTC())
		event.SetStartAt(item.StartTime().UTC())
		event.SetEndAt(item.EndTime().UTC())
		event.SetSummary(Summary(item, &snapshot.Mixin))

		if room := schedule.Rooms[item.RoomID.String()].DisplayName(); room != "" {
			event.SetLocation(room)
		}
		if item.Speaker != nil {
			if contact := SpeakerLine(*item.Speaker); contact != "" {
				event.SetProperty(ics.ComponentProperty("CONTACT"), contact)
			}
		}
		stream := timeline.StreamLabel(item.MainFocus.String(), schedule, &snapshot.Mixin)
		if desc := Description(item, stream, snapshot.Abstracts[id]); desc != "" {
			event.SetDescription(desc)
		}
		if opts.AgendaURL != "" {
			event.SetURL(opts.AgendaURL + "#agendaId." + id)
		}
	}

	return cal
}

// Write serializes the calendar of a snapshot to w
func Write(w io.Writer, snapshot *models.Snapshot, opts Options) error {
	if _, err := io.WriteString(w, Build(snapshot, opts).Serialize()); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	return nil
}

// EventUID derives a stable UID from the agenda id and the event slot
func EventUID(prefix, id string, item models.AgendaItem) string {
	return fmt.Sprintf("%s.%s.%s", prefix, id, strings.TrimSpace(item.EventSlotID.String()))
}

// Summary prefixes the title with the stream icon when the stream has one
func Summary(item models.AgendaItem, mixin *models.Mixin) string {
	title := strings.TrimSpace(item.Title)
	if icon := mixin.StreamIcon(item.MainFocus.String()); icon != "" {
		return icon + " " + title
	}
	return title
}

// SpeakerLine formats a speaker as "Name (Company)", leaving out a blank company
func SpeakerLine(s models.Speaker) string {
	name := strings.TrimSpace(s.Name)
	company := strings.TrimSpace(s.Company)
	if company == "" {
		return name
	}
	return strings.TrimSpace(name + " (" + company + ")")
}

// Description lists the speakers, the stream and the abstract as plain text
// paragraphs. Empty parts are left out.
func Description(item models.AgendaItem, stream, abstract string) string {
	var parts []string

	var people []string
	for _, s := range item.Speakers() {
		if line := SpeakerLine(s); line != "" {
			people = append(people, line)
		}
	}
	if len(people) > 0 {
		parts = append(parts, strings.Join(people, "\n"))
	}
	if stream != "" {
		parts = append(parts, stream)
	}
	if abstract = strings.TrimSpace(abstract); abstract != "" {
		parts = append(parts, abstract)
	}

	return strings.Join(parts, "\n\n")
}
