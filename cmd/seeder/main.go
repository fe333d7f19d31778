//cmd/seeder/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	zlog "github.com/rs/zerolog/log"

	"github.com/unclebandit/darb-backend/internal/app"
	"github.com/unclebandit/darb-backend/internal/config"
	"github.com/unclebandit/darb-backend/internal/db"
	"github.com/unclebandit/darb-backend/internal/logging"
	"github.com/unclebandit/darb-backend/internal/model"
)

type seedCampaign struct {
	CreatorID string         `json:"creatorId"`
	Campaign  model.Campaign `json:"campaign"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.Setup(cfg.ServiceName+"-seeder", cfg.LogLevel, cfg.LogPretty)

	seedFiles := []string{"seed/campaigns.json"}
	if len(os.Args) > 1 {
		seedFiles = os.Args[1:]
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	if a.DB != nil {
		if err := db.EnsureSchema(ctx, a.DB); err != nil {
			logger.Fatal().Err(err).Msg("failed to create schema")
		}
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			logger.Fatal().Err(err).Str("file", file).Msg("failed to read seed file")
		}
		var seeds []seedCampaign
		if err := json.Unmarshal(content, &seeds); err != nil {
			logger.Fatal().Err(err).Str("file", file).Msg("failed to parse seed file")
		}

		for _, s := range seeds {
			c, err := a.Campaigns.CreateCampaign(ctx, s.Campaign, s.CreatorID)
			if err != nil {
				logger.Fatal().Err(err).Str("title", s.Campaign.Title).Msg("failed to seed campaign")
			}
			logger.Info().Str("campaign", c.ID).Str("origin", string(c.Origin)).Msg("seeded campaign")
		}
		fmt.Printf("Seeded: %s\n", file)
	}

	fmt.Println("Database seeding completed successfully!")
}
