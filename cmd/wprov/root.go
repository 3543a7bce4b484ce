package main

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lcalzada-xor/wprov/internal/config"
	"github.com/lcalzada-xor/wprov/internal/logging"
)

// cli carries what the root command resolves for its children.
type cli struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	log        logr.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{v: config.New()}

	root := &cobra.Command{
		Use:           "wprov",
		Short:         "Wi-Fi provisioning agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFile(c.v, c.configFile); err != nil {
				return err
			}
			if err := config.BindFlags(c.v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(c.v)
			if err != nil {
				return err
			}
			c.cfg = cfg

			// One-shot commands keep stdout for their results.
			var w io.Writer = os.Stdout
			if cmd.Name() != "run" {
				w = os.Stderr
			}
			c.log = logging.New(w, cfg.Debug)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (yaml, toml or json)")
	pf.Bool("debug", false, "enable verbose debug logging")
	pf.String("store.path", "", "path to the credential database")
	pf.String("store.label", "wifi", "key the credentials are saved under")

	root.AddCommand(newRunCmd(c), newCredsCmd(c), newWPSCmd(c))
	return root
}
