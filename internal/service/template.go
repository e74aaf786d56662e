package service

import (
	"strings"
	"time"

	"ticketflow/internal/models"

	"github.com/cbroglie/mustache"
)

// greetingFor returns the salutation matching the hour of t.
func greetingFor(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Bom dia"
	case h < 18:
		return "Boa tarde"
	default:
		return "Boa noite"
	}
}

// templateView is the data a message template may reference:
// {{name}}, {{firstName}}, {{number}}, {{greeting}}, {{date}}, {{hour}}.
func templateView(contact *models.Contact, now time.Time) map[string]string {
	view := map[string]string{
		"greeting": greetingFor(now),
		"date":     now.Format("02/01/2006"),
		"hour":     now.Format("15:04"),
	}
	if contact != nil {
		view["name"] = contact.Name
		view["number"] = contact.Number
		if fields := strings.Fields(contact.Name); len(fields) > 0 {
			view["firstName"] = fields[0]
		}
	}
	return view
}

// formatBody renders body as a Mustache template for contact. Values are
// not HTML escaped. A body that fails to parse is returned unchanged.
func formatBody(body string, contact *models.Contact, now time.Time) string {
	if !strings.Contains(body, "{{") {
		return body
	}
	rendered, err := mustache.RenderRaw(body, true, templateView(contact, now))
	if err != nil {
		return body
	}
	return rendered
}
