package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"jarvis/internal/application"
)

func newAskCmd(load configLoader) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Run a single typed command and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			a, err := newApp(cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.pipeline.HandleText(cmd.Context(), application.TextCommand{
				Text:   strings.Join(args, " "),
				Device: device,
			})

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Status int `json:"status"`
				*application.Response
			}{resp.Status, resp})
		},
	}
	cmd.Flags().StringVar(&device, "device", "cli", "device name used to pick the reply speaker")
	return cmd
}
