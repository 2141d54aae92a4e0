package timeline

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/navikt/zagenda/internal/models"
)

var fragments = template.Must(template.New("fragments").Parse(`
{{- define "speaker" -}}
<h6 class="card-subtitle mb-2 text-muted">{{.Name}} {{with .Company}}<i>({{.}})</i>{{end}}</h6>
{{- end -}}

{{- define "item" -}}
<h5 class="card-title">{{.Title}}</h5>
{{.Speakers}}
<p class="card-text">{{.Stream}}</p>
{{- end -}}

{{- define "group" -}}
<h3>{{.Name}}</h3><br/>
<span>🪑 {{.Capacity}}</span>
{{- end -}}
`))

// FormatSpeaker renders one speaker line. The company is shown only when it
// is not blank.
func FormatSpeaker(speaker models.Speaker) template.HTML {
	view := models.Speaker{
		Name:    speaker.Name,
		Company: strings.TrimSpace(speaker.Company),
	}
	return execute("speaker", view)
}

// StreamLabel joins the stream icon and name of a focus tag. Unknown tags and
// items without a focus produce an empty label.
func StreamLabel(focus string, schedule *models.Schedule, mixin *models.Mixin) string {
	if focus == "" {
		return ""
	}
	icon := mixin.StreamIcon(focus)
	name := schedule.StreamName(focus)
	return strings.TrimSpace(icon + " " + name)
}

// ItemContent renders the card shown inside a timeline item
func ItemContent(item models.AgendaItem, schedule *models.Schedule, mixin *models.Mixin) template.HTML {
	speakers := item.Speakers()
	lines := make([]string, 0, len(speakers))
	for _, s := range speakers {
		lines = append(lines, string(FormatSpeaker(s)))
	}

	view := struct {
		Title    string
		Speakers template.HTML
		Stream   string
	}{
		Title:    strings.TrimSpace(item.Title),
		Speakers: template.HTML(strings.Join(lines, "\n")),
		Stream:   StreamLabel(item.MainFocus.String(), schedule, mixin),
	}
	return execute("item", view)
}

// GroupContent renders the label shown for a room row
func GroupContent(room models.Room) template.HTML {
	view := struct {
		Name     string
		Capacity string
	}{
		Name:     room.DisplayName(),
		Capacity: room.Capacity.String(),
	}
	return execute("group", view)
}

func execute(name string, data any) template.HTML {
	var buf bytes.Buffer
	// Static templates over plain strings; a failure here is a bug
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		panic(err)
	}
	return template.HTML(buf.String())
}
