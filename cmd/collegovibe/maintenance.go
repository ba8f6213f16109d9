package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"collegovibe/internal/dbmysql"
	"collegovibe/internal/di"
	"collegovibe/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MySQL message table and the MongoDB indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()
		log := logger.WithComponent("migrate")

		stores, cleanup, err := di.ProvideStores(cfg, log)
		if err != nil {
			return err
		}
		defer cleanup()

		if stores.MySQL == nil && stores.Mongo == nil {
			log.Info().Msg("memory backend has nothing to migrate")
			return nil
		}

		if err := dbmysql.Migrate(stores.MySQL); err != nil {
			return err
		}
		log.Info().Msg("MySQL migration completed")

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		if err := stores.Mongo.EnsureIndexes(ctx); err != nil {
			return err
		}
		log.Info().Msg("MongoDB indexes ensured")
		return nil
	},
}

var reapStoriesCmd = &cobra.Command{
	Use:   "reap-stories",
	Short: "Delete every story past its lifetime and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := setup()
		if err != nil {
			return err
		}
		defer closer.Close()

		app, cleanup, err := di.InitializeApplication(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialise application: %w", err)
		}
		defer cleanup()

		armed, expired, err := app.Stories.Recover(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("expired %d stories, %d still live\n", expired, armed)
		return nil
	},
}
