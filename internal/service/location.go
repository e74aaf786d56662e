package service

import (
	"strconv"
	"strings"

	"ticketflow/pkg/whatsapp/types"
)

const (
	mapsBaseURL          = "https://maps.google.com/maps"
	locationThumbPrefix  = "data:image/png;base64,"
	locationSummary      = "Localization"
	locationSummaryDelim = " - "
)

// mapURL links to the coordinates on Google Maps.
func mapURL(lat, lng float64, language string) string {
	return mapsBaseURL + "?q=" + formatCoordinate(lat) + "%2C" + formatCoordinate(lng) + "&z=17&hl=" + language
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatLocation returns the stored body of a location message and the
// ticket summary for it. The body is "<thumbnail data URI>|<map url>|<label>"
// where the label is the description or "lat, lng".
func formatLocation(msg *types.Message, language string) (body, summary string) {
	if msg.Location == nil {
		return msg.Body, locationSummary
	}
	loc := msg.Location

	label := loc.Description
	if label == "" {
		label = formatCoordinate(loc.Latitude) + ", " + formatCoordinate(loc.Longitude)
	}
	body = locationThumbPrefix + msg.Body + "|" + mapURL(loc.Latitude, loc.Longitude, language) + "|" + label

	summary = locationSummary
	if loc.Description != "" {
		summary += locationSummaryDelim + firstLine(loc.Description)
	}
	return body, summary
}

// firstLine cuts s at the first line break, real or escaped.
func firstLine(s string) string {
	s = strings.ReplaceAll(s, `\n`, "\n")
	line, _, _ := strings.Cut(s, "\n")
	return line
}
