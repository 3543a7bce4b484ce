package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/wprov/internal/app"
	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/telemetry"
)

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the provisioning agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := c.log
			if c.cfg.Trace {
				shutdown, err := telemetry.InitTracer()
				if err != nil {
					log.Error(err, "Failed to init tracer")
				} else {
					defer func() {
						if err := shutdown(context.Background()); err != nil {
							log.Error(err, "Failed to shutdown tracer")
						}
					}()
				}
			}

			application, err := app.New(c.cfg, log, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Info("wprov starting", "version", telemetry.Version)
			err = application.Run(ctx)
			if errors.Is(err, domain.ErrFatal) {
				log.Error(err, "Unrecoverable board failure")
			}
			return err
		},
	}

	f := cmd.Flags()
	f.String("ap.ssid", "my_network", "provisioning access point SSID")
	f.String("ap.password", "my_password", "provisioning access point passphrase")
	f.Int("ap.channel", 1, "provisioning access point channel")
	f.Int("provisioning.port", 10001, "TCP port for the credential handshake")
	f.Duration("provisioning.read_timeout", 30*time.Second, "per-connection read timeout")
	f.String("mdns.instance", "low_level_microcontroller", "mDNS instance name")
	f.String("mdns.service", "_provision._tcp", "mDNS service type")
	f.Bool("mdns.disabled", false, "do not announce the provisioning service")
	f.String("link.driver", "sim", "radio driver: sim or nmcli")
	f.String("link.interface", "wlan0", "client interface")
	f.String("link.ap_interface", "", "access point interface (defaults to link.interface)")
	f.String("console.device", "", "serial device for the operator console (default stdin)")
	f.Int("console.baud", 115200, "serial console baud rate")
	f.Duration("console.decision_timeout", 30*time.Second, "wait for a join-failure answer (0 waits forever)")
	f.String("console.default_decision", "retry", "join-failure answer on timeout: reset or retry")
	f.Duration("grace.client", time.Second, "grace period before leaving a network")
	f.Duration("grace.ap", 10*time.Second, "grace period before stopping the access point")
	f.String("mqtt.broker", "", "MQTT broker URL, e.g. tcp://host:1883")
	f.String("mqtt.topic", "wprov", "MQTT topic prefix")
	f.String("http.addr", ":8080", "diagnostics HTTP address")
	f.String("grpc.addr", ":9000", "gRPC health address")
	f.Bool("trace.enabled", false, "export OpenTelemetry spans to stdout")
	return cmd
}
