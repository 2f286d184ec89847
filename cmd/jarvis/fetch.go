package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jarvis/internal/infra/homeassistant"
	"jarvis/internal/infra/snapshot"
)

func newFetchEntitiesCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-entities",
		Short: "Download entity states from Home Assistant and write the snapshot files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			client := homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, cfg.HomeAssistant.Timeout, cfg.HomeAssistant.TTSService)
			raw, states, err := client.FetchStates(cmd.Context())
			if err != nil {
				return err
			}

			if err := snapshot.WriteAtomic(cfg.Entities.StatesPath, raw); err != nil {
				return fmt.Errorf("writing states file: %w", err)
			}

			entities := homeassistant.ToEntities(states, cfg.Entities.Include)
			if err := snapshot.WriteFile(cfg.Entities.SnapshotPath, entities); err != nil {
				return fmt.Errorf("writing snapshot: %w", err)
			}

			logger.Info("entity snapshot written",
				"states", len(states),
				"entities", len(entities),
				"states_path", cfg.Entities.StatesPath,
				"snapshot_path", cfg.Entities.SnapshotPath,
			)
			return nil
		},
	}
}
