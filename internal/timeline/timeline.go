// Package timeline shapes schedule documents into the groups, items and
// options consumed by the vis-timeline widget.
package timeline

import (
	"encoding/json"
	"html/template"
	"sort"
	"strconv"
	"time"

	"github.com/navikt/zagenda/internal/models"
)

// Widget options
const (
	// ZoomMin is one hour in milliseconds
	ZoomMin int64 = 3_600_000
	// ZoomMax is eighteen hours in milliseconds
	ZoomMax int64 = 64_800_000
)

// Group is one timeline row, one per room
type Group struct {
	ID      string        `json:"id"`
	Content template.HTML `json:"content"`
	// Order is the position of the group after numeric id ordering
	Order int `json:"order"`
}

// Item is one timeline entry, one per titled agenda item
type Item struct {
	ID      string
	Group   string
	Content template.HTML
	Start   time.Time
	End     time.Time
}

// MarshalJSON encodes start and end as epoch milliseconds
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID      string        `json:"id"`
		Group   string        `json:"group"`
		Content template.HTML `json:"content"`
		Start   int64         `json:"start"`
		End     int64         `json:"end"`
	}{
		ID:      i.ID,
		Group:   i.Group,
		Content: i.Content,
		Start:   i.Start.UnixMilli(),
		End:     i.End.UnixMilli(),
	})
}

// Options is the static widget configuration
type Options struct {
	GroupOrder      string `json:"groupOrder"`
	Editable        bool   `json:"editable"`
	GroupHeightMode string `json:"groupHeightMode"`
	ZoomMin         int64  `json:"zoomMin"`
	ZoomMax         int64  `json:"zoomMax"`
}

// DefaultOptions returns the options every timeline is rendered with
func DefaultOptions() Options {
	return Options{
		GroupOrder:      "order",
		Editable:        false,
		GroupHeightMode: "fixed",
		ZoomMin:         ZoomMin,
		ZoomMax:         ZoomMax,
	}
}

// Timeline is the complete widget input
type Timeline struct {
	Groups  []Group `json:"groups"`
	Items   []Item  `json:"items"`
	Options Options `json:"options"`
	// UpdatedAt is when the underlying documents were fetched
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
	// Dropped counts agenda entries skipped for having a blank title
	Dropped int `json:"-"`
}

// Build shapes a schedule and its mixin into a timeline. Missing lookups
// render as blank text; nothing here fails.
func Build(schedule *models.Schedule, mixin *models.Mixin) Timeline {
	tl := Timeline{
		Groups:  BuildGroups(schedule),
		Items:   make([]Item, 0, len(schedule.Agenda)),
		Options: DefaultOptions(),
	}

	for _, id := range OrderedKeys(schedule.Agenda) {
		item := schedule.Agenda[id]
		if !item.HasTitle() {
			tl.Dropped++
			continue
		}
		tl.Items = append(tl.Items, Item{
			ID:      id,
			Group:   item.RoomID.String(),
			Content: ItemContent(item, schedule, mixin),
			Start:   item.StartTime(),
			End:     item.EndTime(),
		})
	}

	return tl
}

// BuildGroups returns one group per room ordered by numeric room id
func BuildGroups(schedule *models.Schedule) []Group {
	ids := OrderedKeys(schedule.Rooms)
	sort.SliceStable(ids, func(a, b int) bool {
		return lessNumeric(ids[a], ids[b])
	})

	groups := make([]Group, 0, len(ids))
	for i, id := range ids {
		groups = append(groups, Group{
			ID:      id,
			Content: GroupContent(schedule.Rooms[id]),
			Order:   i,
		})
	}
	return groups
}

// OrderedKeys lists map keys the way a JavaScript object enumerates them:
// array-index keys ascending first, then the remaining keys. Go maps carry no
// insertion order, so the remaining keys are sorted lexically.
func OrderedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		ia, aok := arrayIndex(keys[a])
		ib, bok := arrayIndex(keys[b])
		switch {
		case aok && bok:
			return ia < ib
		case aok != bok:
			return aok
		default:
			return keys[a] < keys[b]
		}
	})
	return keys
}

// arrayIndex reports whether key is a canonical array index
func arrayIndex(key string) (uint64, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == 1<<32-1 {
		return 0, false
	}
	return n, true
}

// lessNumeric orders numeric ids by value ahead of non-numeric ids
func lessNumeric(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		return fa < fb
	case (errA == nil) != (errB == nil):
		return errA == nil
	default:
		return false
	}
}
