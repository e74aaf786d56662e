package database

import (
	"context"
	"database/sql"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
)

func scanChannel(row rowScanner) (*models.Channel, error) {
	var ch models.Channel
	if err := row.Scan(&ch.ID, &ch.Name, &ch.SessionName, &ch.GreetingMessage,
		&ch.FarewellMessage, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (d *Database) loadQueues(ctx context.Context, ch *models.Channel) error {
	rows, err := d.db.QueryContext(ctx, selectChannelQueuesQuery, ch.ID)
	if err != nil {
		return apperrors.NewDatabaseError("list channel queues", err)
	}
	defer rows.Close()

	ch.Queues = nil
	for rows.Next() {
		var q models.Queue
		if err := rows.Scan(&q.ID, &q.Name, &q.Color, &q.GreetingMessage); err != nil {
			return apperrors.NewDatabaseError("scan queue", err)
		}
		ch.Queues = append(ch.Queues, q)
	}
	if err := rows.Err(); err != nil {
		return apperrors.NewDatabaseError("list channel queues", err)
	}
	return nil
}

// GetChannel returns the channel with its queues ordered by id, or nil.
func (d *Database) GetChannel(ctx context.Context, id int64) (*models.Channel, error) {
	return d.getChannel(ctx, " WHERE id = ?", id)
}

// GetChannelBySession returns the channel bound to a bridge session, or nil.
func (d *Database) GetChannelBySession(ctx context.Context, sessionName string) (*models.Channel, error) {
	return d.getChannel(ctx, " WHERE session_name = ?", sessionName)
}

func (d *Database) getChannel(ctx context.Context, where string, arg interface{}) (*models.Channel, error) {
	ch, err := scanChannel(d.db.QueryRowContext(ctx, selectChannelColumns+where, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get channel", err)
	}
	if err := d.loadQueues(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// ListChannels returns every channel with its queues.
func (d *Database) ListChannels(ctx context.Context) ([]*models.Channel, error) {
	rows, err := d.db.QueryContext(ctx, selectChannelColumns+" ORDER BY id ASC")
	if err != nil {
		return nil, apperrors.NewDatabaseError("list channels", err)
	}

	var channels []*models.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			rows.Close()
			return nil, apperrors.NewDatabaseError("scan channel", err)
		}
		channels = append(channels, ch)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, apperrors.NewDatabaseError("list channels", err)
	}

	// Queues are loaded after the cursor is closed; the pool holds one connection.
	for _, ch := range channels {
		if err := d.loadQueues(ctx, ch); err != nil {
			return nil, err
		}
	}
	return channels, nil
}

// SaveChannel inserts or updates a channel by session name and returns
// its id.
func (d *Database) SaveChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	now := d.now()
	err := withRetry(ctx, "save channel", func() error {
		_, err := d.db.ExecContext(ctx, upsertChannelQuery,
			ch.Name, ch.SessionName, ch.GreetingMessage, ch.FarewellMessage, now, now)
		return err
	})
	if err != nil {
		return 0, apperrors.NewDatabaseError("save channel", err)
	}

	var id int64
	if err := d.db.QueryRowContext(ctx, "SELECT id FROM whatsapps WHERE session_name = ?", ch.SessionName).Scan(&id); err != nil {
		return 0, apperrors.NewDatabaseError("save channel", err)
	}
	return id, nil
}

// SaveQueue inserts or updates a queue by name and returns its id.
func (d *Database) SaveQueue(ctx context.Context, q *models.Queue) (int64, error) {
	err := withRetry(ctx, "save queue", func() error {
		_, err := d.db.ExecContext(ctx, upsertQueueQuery, q.Name, q.Color, q.GreetingMessage)
		return err
	})
	if err != nil {
		return 0, apperrors.NewDatabaseError("save queue", err)
	}

	var id int64
	if err := d.db.QueryRowContext(ctx, "SELECT id FROM queues WHERE name = ?", q.Name).Scan(&id); err != nil {
		return 0, apperrors.NewDatabaseError("save queue", err)
	}
	return id, nil
}

// LinkQueue makes a queue selectable on a channel.
func (d *Database) LinkQueue(ctx context.Context, whatsappID, queueID int64) error {
	err := withRetry(ctx, "link queue", func() error {
		_, err := d.db.ExecContext(ctx, linkQueueQuery, whatsappID, queueID)
		return err
	})
	if err != nil {
		return apperrors.NewDatabaseError("link queue", err)
	}
	return nil
}
