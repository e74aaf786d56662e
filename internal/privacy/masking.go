package privacy

import (
	"strings"

	"ticketflow/internal/constants"

	"github.com/sirupsen/logrus"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits
// Example: "5511999998888" -> "*********8888"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return "+" + maskString(phone[1:], constants.DefaultPhoneMaskLength)
	}
	return maskString(phone, constants.DefaultPhoneMaskLength)
}

// MaskChatID masks the user part of a WhatsApp chat id and keeps the domain
// Example: "5511999998888@c.us" -> "*********8888@c.us"
func MaskChatID(chatID string) string {
	if chatID == "" {
		return ""
	}
	if at := strings.Index(chatID, "@"); at >= 0 {
		return maskString(chatID[:at], constants.DefaultPhoneMaskLength) + chatID[at:]
	}
	return maskString(chatID, constants.DefaultPhoneMaskLength)
}

// MaskMessageID masks a serialized message id "fromMe_chatId_id"
// Example: "true_5511999998888@c.us_3EB0A1B2C3D4" -> "true_*********8888@c.us_******B2C3D4"
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}

	parts := strings.SplitN(messageID, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + MaskChatID(parts[1]) + "_" + maskString(parts[2], 6)
	}
	return maskString(messageID, constants.DefaultMessageIDLength)
}

func maskString(s string, keepLast int) string {
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// Fields masks well-known identifier fields before they are logged.
// When verbose is set the fields are returned untouched.
func Fields(verbose bool, fields logrus.Fields) logrus.Fields {
	if verbose || fields == nil {
		return fields
	}

	masked := make(logrus.Fields, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "phone", "number":
			masked[k] = MaskPhoneNumber(s)
		case "from", "to", "chat_id", "author":
			masked[k] = MaskChatID(s)
		case "message_id", "quoted_msg_id":
			masked[k] = MaskMessageID(s)
		default:
			masked[k] = v
		}
	}
	return masked
}
