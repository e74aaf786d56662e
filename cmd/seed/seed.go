package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"ticketflow/internal/models"
	"ticketflow/internal/security"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document loaded by the seed command. Channels and
// bots refer to queues by name.
type SeedFile struct {
	Queues   []models.Queue   `yaml:"queues"`
	Channels []SeedChannel    `yaml:"channels"`
	Settings []models.Setting `yaml:"settings"`
	Bots     []SeedBot        `yaml:"bots"`
}

type SeedChannel struct {
	Name     string   `yaml:"name"`
	Session  string   `yaml:"session"`
	Greeting string   `yaml:"greeting"`
	Farewell string   `yaml:"farewell"`
	Queues   []string `yaml:"queues"`
}

type SeedBot struct {
	models.BotDefinition `yaml:",inline"`
	Queue                string `yaml:"queue"`
}

// SeedStore is the part of the database the seed command writes to.
type SeedStore interface {
	SaveQueue(ctx context.Context, q *models.Queue) (int64, error)
	SaveChannel(ctx context.Context, ch *models.Channel) (int64, error)
	LinkQueue(ctx context.Context, whatsappID, queueID int64) error
	SaveSetting(ctx context.Context, setting models.Setting) error
	SaveBot(ctx context.Context, bot *models.BotDefinition) error
}

func loadSeed(path string) (*SeedFile, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid seed path: %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *SeedFile) validate() error {
	queues := make(map[string]bool, len(s.Queues))
	for _, q := range s.Queues {
		if strings.TrimSpace(q.Name) == "" {
			return fmt.Errorf("queue without name")
		}
		queues[q.Name] = true
	}
	for _, ch := range s.Channels {
		if ch.Session == "" {
			return fmt.Errorf("channel %q has no session", ch.Name)
		}
		for _, name := range ch.Queues {
			if !queues[name] {
				return fmt.Errorf("channel %q refers to unknown queue %q", ch.Session, name)
			}
		}
	}
	for _, bot := range s.Bots {
		if strings.TrimSpace(bot.CommandBot) == "" {
			return fmt.Errorf("bot without command")
		}
		if bot.CommandType < models.CommandTypeInfo || bot.CommandType > models.CommandTypeAgent {
			return fmt.Errorf("bot %q has unknown type %d", bot.CommandBot, bot.CommandType)
		}
		if bot.Queue != "" && !queues[bot.Queue] {
			return fmt.Errorf("bot %q refers to unknown queue %q", bot.CommandBot, bot.Queue)
		}
	}
	return nil
}

// apply upserts the seed in dependency order: queues first so channels
// and bots can resolve queue names to ids.
func apply(ctx context.Context, store SeedStore, seed *SeedFile, logger *logrus.Logger) error {
	queueIDs := make(map[string]int64, len(seed.Queues))
	for i := range seed.Queues {
		id, err := store.SaveQueue(ctx, &seed.Queues[i])
		if err != nil {
			return err
		}
		queueIDs[seed.Queues[i].Name] = id
	}

	for _, sc := range seed.Channels {
		name := sc.Name
		if name == "" {
			name = sc.Session
		}
		channelID, err := store.SaveChannel(ctx, &models.Channel{
			Name:            name,
			SessionName:     sc.Session,
			GreetingMessage: sc.Greeting,
			FarewellMessage: sc.Farewell,
		})
		if err != nil {
			return err
		}
		for _, queue := range sc.Queues {
			if err := store.LinkQueue(ctx, channelID, queueIDs[queue]); err != nil {
				return err
			}
		}
		logger.WithFields(logrus.Fields{"session": sc.Session, "queues": len(sc.Queues)}).Info("Seeded channel")
	}

	for _, setting := range seed.Settings {
		if err := store.SaveSetting(ctx, setting); err != nil {
			return err
		}
	}

	for i := range seed.Bots {
		bot := seed.Bots[i].BotDefinition
		if queue := seed.Bots[i].Queue; queue != "" {
			id := queueIDs[queue]
			bot.QueueID = &id
		}
		if err := store.SaveBot(ctx, &bot); err != nil {
			return err
		}
	}

	logger.WithFields(logrus.Fields{
		"queues":   len(seed.Queues),
		"channels": len(seed.Channels),
		"settings": len(seed.Settings),
		"bots":     len(seed.Bots),
	}).Info("Seed applied")
	return nil
}
