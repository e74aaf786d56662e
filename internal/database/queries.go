package database

// Contact queries
const (
	upsertContactQuery = `
		INSERT INTO contacts (name, number, profile_pic_url, is_group, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			name = excluded.name,
			profile_pic_url = excluded.profile_pic_url,
			updated_at = excluded.updated_at
	`

	insertContactQuery = `
		INSERT INTO contacts (name, number, profile_pic_url, is_group, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`

	selectContactColumns = `
		SELECT id, name, number, profile_pic_url, is_group, command_bot, created_at, updated_at
		FROM contacts
	`

	updateContactCommandQuery = `
		UPDATE contacts SET command_bot = ?, updated_at = ? WHERE id = ?
	`
)

// Ticket queries
const (
	selectTicketColumns = `
		SELECT id, status, unread_messages, last_message, is_group, contact_id,
		       whatsapp_id, queue_id, user_id, channel, created_at, updated_at
		FROM tickets
	`

	insertTicketQuery = `
		INSERT INTO tickets (status, unread_messages, last_message, is_group, contact_id,
		                     whatsapp_id, queue_id, user_id, channel, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
)

// Message queries
const (
	upsertMessageQuery = `
		INSERT INTO messages (id, ticket_id, contact_id, body, from_me, read, media_url,
		                      media_type, quoted_msg_id, ack, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			read = excluded.read,
			media_url = excluded.media_url,
			media_type = excluded.media_type,
			quoted_msg_id = excluded.quoted_msg_id,
			updated_at = excluded.updated_at
	`

	selectMessageQuery = `
		SELECT id, ticket_id, contact_id, body, from_me, read, media_url, media_type,
		       quoted_msg_id, ack, created_at, updated_at
		FROM messages
		WHERE id = ?
	`

	updateMessageAckQuery = `
		UPDATE messages SET ack = ?, updated_at = ? WHERE id = ?
	`
)

// Channel, queue, setting and bot queries
const (
	selectChannelColumns = `
		SELECT id, name, session_name, greeting_message, farewell_message, created_at, updated_at
		FROM whatsapps
	`

	selectChannelQueuesQuery = `
		SELECT q.id, q.name, q.color, q.greeting_message
		FROM queues q
		JOIN whatsapp_queues wq ON wq.queue_id = q.id
		WHERE wq.whatsapp_id = ?
		ORDER BY q.id ASC
	`

	upsertChannelQuery = `
		INSERT INTO whatsapps (name, session_name, greeting_message, farewell_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_name) DO UPDATE SET
			name = excluded.name,
			greeting_message = excluded.greeting_message,
			farewell_message = excluded.farewell_message,
			updated_at = excluded.updated_at
	`

	upsertQueueQuery = `
		INSERT INTO queues (name, color, greeting_message)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			color = excluded.color,
			greeting_message = excluded.greeting_message
	`

	linkQueueQuery = `
		INSERT OR IGNORE INTO whatsapp_queues (whatsapp_id, queue_id) VALUES (?, ?)
	`

	selectSettingQuery = `SELECT value FROM settings WHERE key = ?`

	upsertSettingQuery = `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`

	selectBotsQuery = `
		SELECT id, command_bot, command_type, description_bot, show_message,
		       attachment, delay_ms, queue_id, user_id
		FROM bots
		ORDER BY id ASC
	`

	upsertBotQuery = `
		INSERT INTO bots (command_bot, command_type, description_bot, show_message,
		                  attachment, delay_ms, queue_id, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(command_bot) DO UPDATE SET
			command_type = excluded.command_type,
			description_bot = excluded.description_bot,
			show_message = excluded.show_message,
			attachment = excluded.attachment,
			delay_ms = excluded.delay_ms,
			queue_id = excluded.queue_id,
			user_id = excluded.user_id
	`
)
