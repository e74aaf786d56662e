package service

import (
	"errors"
	"io"
	"strings"

	"github.com/emersion/go-vcard"
)

// ContactCard is what a shared contact card carries.
type ContactCard struct {
	Name    string
	Numbers []string
}

func (c *ContactCard) addNumber(seen map[string]bool, value string) {
	if number := digitsOnly(value); number != "" && !seen[number] {
		seen[number] = true
		c.Numbers = append(c.Numbers, number)
	}
}

// parseContactCard extracts the display name and phone numbers of one or
// more vCards. Numbers are reduced to their digits. Bodies that do not
// decode as vCards fall back to scanContactCard.
func parseContactCard(body string) ContactCard {
	if strings.TrimSpace(body) == "" {
		return ContactCard{}
	}

	var card ContactCard
	seen := make(map[string]bool)
	dec := vcard.NewDecoder(strings.NewReader(body))
	for {
		vc, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return scanContactCard(body)
		}
		if card.Name == "" {
			card.Name = strings.TrimSpace(vc.PreferredValue(vcard.FieldFormattedName))
		}
		for _, tel := range vc.Values(vcard.FieldTelephone) {
			card.addNumber(seen, tel)
		}
	}
	return card
}

// scanContactCard reads loosely formatted cards line by line: any colon
// separated value containing "+" is a phone number, and the value after an
// FN key is the name.
func scanContactCard(body string) ContactCard {
	var card ContactCard
	seen := make(map[string]bool)

	for _, line := range strings.Split(body, "\n") {
		values := strings.Split(strings.TrimRight(line, "\r"), ":")
		for i, value := range values {
			if strings.Contains(value, "+") {
				card.addNumber(seen, value)
			}
			if strings.HasPrefix(strings.TrimSpace(value), "FN") && i+1 < len(values) {
				card.Name = strings.TrimSpace(values[i+1])
			}
		}
	}
	return card
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
