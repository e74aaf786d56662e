package service

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
	"ticketflow/pkg/whatsapp/types"
)

const dataURIPrefix = "data:"

var dataURIMimePattern = regexp.MustCompile(`^data:([a-zA-Z0-9]+/[a-zA-Z0-9\-.+]+)`)

// MenuItem is one step of a greeting sequence. Content is either plain
// text or a data URI attachment.
type MenuItem struct {
	Content string
	Delay   time.Duration
}

// IsAttachment reports whether the item carries a data URI.
func (m MenuItem) IsAttachment() bool {
	return isDataURI(m.Content)
}

func isDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), dataURIPrefix)
}

// ComposeMenu builds the greeting sequence from the top-level definitions,
// in catalog order. Informational definitions contribute their attachment
// when they have one and their message otherwise. Other types contribute
// a "*command* - description" line.
func ComposeMenu(bots []models.BotDefinition) []MenuItem {
	var items []MenuItem
	for _, bot := range bots {
		if !bot.IsTopLevel() {
			continue
		}

		item := MenuItem{Delay: time.Duration(bot.DelayMs) * time.Millisecond}
		switch bot.CommandType {
		case models.CommandTypeInfo:
			if bot.HasAttachment() {
				item.Content = bot.Attachment
			} else {
				item.Content = bot.ShowMessage
			}
		default:
			item.Content = menuLine(bot)
		}

		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func menuLine(bot models.BotDefinition) string {
	return fmt.Sprintf("*%s* - %s", bot.Path().Last(), bot.DescriptionBot)
}

// RenderSubMenu lists the direct children of path, prefixed by the menu
// definition's own message.
func RenderSubMenu(menu models.BotDefinition, bots []models.BotDefinition) string {
	var sb strings.Builder
	if menu.ShowMessage != "" {
		sb.WriteString(menu.ShowMessage)
		sb.WriteString("\n")
	}

	path := menu.Path()
	for _, bot := range bots {
		if bot.Path().Parent() != path {
			continue
		}
		sb.WriteString(menuLine(bot))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FindBot returns the definition whose token equals command.
func FindBot(bots []models.BotDefinition, command models.CommandPath) (*models.BotDefinition, bool) {
	for i := range bots {
		if models.CommandPath(bots[i].CommandBot) == command {
			return &bots[i], true
		}
	}
	return nil, false
}

// parseDataURI decodes a data URI into sendable media. The filename is
// derived from the MIME subtype.
func parseDataURI(uri string) (*types.Media, error) {
	uri = strings.TrimSpace(uri)
	comma := strings.Index(uri, ",")
	if !strings.HasPrefix(uri, dataURIPrefix) || comma < 0 {
		return nil, apperrors.NewValidationError("attachment", "", "attachment is not a data URI")
	}

	match := dataURIMimePattern.FindStringSubmatch(uri[:comma])
	if match == nil {
		return nil, apperrors.NewValidationError("attachment", uri[:comma], "attachment has no MIME type")
	}
	mimetype := match[1]

	header, payload := uri[:comma], uri[comma+1:]
	var data []byte
	var err error
	if strings.HasSuffix(header, ";base64") {
		data, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "failed to decode attachment")
	}

	return &types.Media{
		Mimetype: mimetype,
		Filename: "attachment." + mimeExtension(mimetype),
		Data:     data,
	}, nil
}

// mimeExtension returns the subtype of mimetype without parameters, e.g.
// "ogg" for "audio/ogg; codecs=opus".
func mimeExtension(mimetype string) string {
	_, sub, ok := strings.Cut(mimetype, "/")
	if !ok {
		return "bin"
	}
	sub, _, _ = strings.Cut(sub, ";")
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return "bin"
	}
	return sub
}

// mediaKind returns the top-level type of mimetype, e.g. "image".
func mediaKind(mimetype string) string {
	kind, _, _ := strings.Cut(mimetype, "/")
	return kind
}
