package main

import (
	"encoding/json"
	"fmt"

	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type tabletFlags struct {
	host   string
	port   uint
	apiKey string
}

func (f *tabletFlags) register(cmd *cobra.Command, withKey bool) {
	cmd.Flags().StringVar(&f.host, "host", "", "tablet host or ip")
	cmd.Flags().UintVar(&f.port, "port", config.DEFAULT_TABLET_PORT, "tablet port")
	_ = cmd.MarkFlagRequired("host")
	if withKey {
		cmd.Flags().StringVar(&f.apiKey, "api-key", "", "tablet api key")
		_ = cmd.MarkFlagRequired("api-key")
	}
}

func (f *tabletFlags) tablet() (config.TabletConfig, error) {
	return config.CheckTablet(config.TabletConfig{Host: f.host, Port: f.port, APIKey: f.apiKey})
}

func discoverCmd() *cobra.Command {
	flags := &tabletFlags{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Check a tablet is reachable and whether it needs an api key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tablet, err := flags.tablet()
			if err != nil {
				return err
			}
			client := newClient(tablet, zap.NewNop())
			if err := service.ValidateTablet(cmd.Context(), client); err != nil {
				return err
			}
			info, err := service.CheckDiscovery(cmd.Context(), client)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if info.API.AuthRequired {
				fmt.Fprintln(cmd.OutOrStdout(), "api key required: set use_auth and api_key")
			}
			return nil
		},
	}
	flags.register(cmd, false)
	return cmd
}

func testAuthCmd() *cobra.Command {
	flags := &tabletFlags{}
	cmd := &cobra.Command{
		Use:   "test-auth",
		Short: "Check an api key against a tablet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tablet, err := flags.tablet()
			if err != nil {
				return err
			}
			if err := service.TestAuth(cmd.Context(), newClient(tablet, zap.NewNop()), tablet.APIKey); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "auth ok")
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}
