/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/elasticdoctor/webapp/internal/db"
	"github.com/elasticdoctor/webapp/internal/events"
	"github.com/elasticdoctor/webapp/internal/mq"
	"github.com/elasticdoctor/webapp/internal/secrets"
	"github.com/elasticdoctor/webapp/internal/services"
	"github.com/elasticdoctor/webapp/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// consumeCmd represents the consume command
var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Applies cluster health reports published by the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		sealer, err := secrets.NewSealer(cfg.Secrets.CredentialsKey)
		if err != nil {
			return fmt.Errorf("CLUSTER_CREDENTIALS_KEY: %w", err)
		}

		ctx := cmd.Context()
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		bus, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer bus.Close()

		clusters := services.NewClusterService(
			store.NewClusterRepository(conn, cfg.Database.Driver, sealer),
			store.NewUserRepository(conn, cfg.Database.Driver),
			nil,
			nil,
			nil,
			logger,
		)

		logger.Info("consuming health reports", zap.String("mq_backend", cfg.MQ.Backend))
		return events.NewHealthConsumer(bus, clusters, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
