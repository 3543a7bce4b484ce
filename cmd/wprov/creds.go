package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/wprov/internal/app"
	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

func newCredsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Inspect or change the saved network credentials",
	}

	var reveal bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the saved credentials as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(c.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			creds, err := store.Load(cmd.Context(), c.cfg.Store.Label)
			if errors.Is(err, domain.ErrCredentialsNotFound) {
				return fmt.Errorf("no credentials saved under %q", c.cfg.Store.Label)
			}
			if err != nil {
				return err
			}
			if !reveal {
				creds = creds.Redacted()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(creds)
		},
	}
	show.Flags().BoolVar(&reveal, "reveal", false, "print the password in clear")

	var security string
	set := &cobra.Command{
		Use:   "set <ssid> [password]",
		Short: "Save credentials the board joins on its next start",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds := domain.NetworkCredentials{SSID: args[0], Security: domain.Security(security)}
			if len(args) == 2 {
				creds.Password = args[1]
			}

			store, err := app.OpenStore(c.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Save(cmd.Context(), c.cfg.Store.Label, creds); err != nil {
				return err
			}
			c.log.Info("Credentials stored", "ssid", creds.SSID, "security", creds.Security)
			return nil
		},
	}
	set.Flags().StringVar(&security, "security", string(domain.SecurityWPA2), "WPA2, WPA3_SAE or WILDCARD")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget the saved credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.OpenStore(c.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Reset(cmd.Context(), c.cfg.Store.Label); err != nil {
				return err
			}
			c.log.Info("Credentials cleared", "label", c.cfg.Store.Label)
			return nil
		},
	}

	cmd.AddCommand(show, set, reset)
	return cmd
}
