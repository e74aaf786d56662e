package types

// Message types emitted by the bridge. Values follow whatsapp-web.js.
const (
	MessageTypeChat                 = "chat"
	MessageTypeAudio                = "audio"
	MessageTypeCallLog              = "call_log"
	MessageTypeVoice                = "ptt"
	MessageTypeVideo                = "video"
	MessageTypeImage                = "image"
	MessageTypeDocument             = "document"
	MessageTypeVCard                = "vcard"
	MessageTypeMultiVCard           = "multi_vcard"
	MessageTypeSticker              = "sticker"
	MessageTypeE2ENotification      = "e2e_notification"
	MessageTypeNotificationTemplate = "notification_template"
	MessageTypeLocation             = "location"
)

// Event names delivered through the webhook.
const (
	EventMessageCreate = "message_create"
	EventMediaUploaded = "media_uploaded"
	EventMessageAck    = "message_ack"
)

const (
	// StatusBroadcast is the pseudo-address used for status updates.
	StatusBroadcast = "status@broadcast"

	UserSuffix  = "@c.us"
	GroupSuffix = "@g.us"
)

const (
	APIBase                = "/api"
	EndpointSendText       = "/sendText"
	EndpointSendFile       = "/sendFile"
	EndpointContacts       = "/contacts"
	EndpointProfilePicture = "/contacts/profile-picture"
	EndpointChats          = "/chats"
	EndpointMessages       = "/messages"
)
