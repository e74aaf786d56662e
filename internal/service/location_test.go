package service

import (
	"testing"

	"ticketflow/pkg/whatsapp/types"

	"github.com/stretchr/testify/assert"
)

func TestFormatLocation(t *testing.T) {
	tests := []struct {
		name            string
		msg             types.Message
		expectedBody    string
		expectedSummary string
	}{
		{
			name: "with description",
			msg: types.Message{Body: "IMG", Location: &types.Location{
				Latitude: 40.7128, Longitude: -74.006, Description: "Office\nFloor 3",
			}},
			expectedBody:    "data:image/png;base64,IMG|https://maps.google.com/maps?q=40.7128%2C-74.006&z=17&hl=en|Office\nFloor 3",
			expectedSummary: "Localization - Office",
		},
		{
			name: "escaped line break in description",
			msg: types.Message{Body: "IMG", Location: &types.Location{
				Latitude: 1, Longitude: 2, Description: `Home\nStreet`,
			}},
			expectedBody:    "data:image/png;base64,IMG|https://maps.google.com/maps?q=1%2C2&z=17&hl=en|Home\\nStreet",
			expectedSummary: "Localization - Home",
		},
		{
			name:            "without description",
			msg:             types.Message{Body: "IMG", Location: &types.Location{Latitude: -23.5, Longitude: -46.25}},
			expectedBody:    "data:image/png;base64,IMG|https://maps.google.com/maps?q=-23.5%2C-46.25&z=17&hl=en|-23.5, -46.25",
			expectedSummary: "Localization",
		},
		{
			name:            "missing coordinates",
			msg:             types.Message{Body: "raw"},
			expectedBody:    "raw",
			expectedSummary: "Localization",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, summary := formatLocation(&tt.msg, "en")
			assert.Equal(t, tt.expectedBody, body)
			assert.Equal(t, tt.expectedSummary, summary)
		})
	}
}
