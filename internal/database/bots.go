package database

import (
	"context"
	"database/sql"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
)

// ListBots returns the bot definition catalog in insertion order.
func (d *Database) ListBots(ctx context.Context) ([]models.BotDefinition, error) {
	rows, err := d.db.QueryContext(ctx, selectBotsQuery)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list bots", err)
	}
	defer rows.Close()

	var bots []models.BotDefinition
	for rows.Next() {
		var bot models.BotDefinition
		var queueID, userID sql.NullInt64
		if err := rows.Scan(&bot.ID, &bot.CommandBot, &bot.CommandType, &bot.DescriptionBot,
			&bot.ShowMessage, &bot.Attachment, &bot.DelayMs, &queueID, &userID); err != nil {
			return nil, apperrors.NewDatabaseError("scan bot", err)
		}
		bot.QueueID = int64Ptr(queueID)
		bot.UserID = int64Ptr(userID)
		bots = append(bots, bot)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("list bots", err)
	}
	return bots, nil
}

// SaveBot inserts or replaces the definition with the same command token.
func (d *Database) SaveBot(ctx context.Context, bot *models.BotDefinition) error {
	err := withRetry(ctx, "save bot", func() error {
		_, err := d.db.ExecContext(ctx, upsertBotQuery,
			bot.CommandBot, bot.CommandType, bot.DescriptionBot, bot.ShowMessage,
			bot.Attachment, bot.DelayMs, nullInt64(bot.QueueID), nullInt64(bot.UserID))
		return err
	})
	if err != nil {
		return apperrors.NewDatabaseError("save bot", err).WithContext("command", bot.CommandBot)
	}
	return nil
}
