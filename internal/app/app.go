package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"github.com/lcalzada-xor/wprov/internal/adapters/console"
	"github.com/lcalzada-xor/wprov/internal/adapters/discovery"
	"github.com/lcalzada-xor/wprov/internal/adapters/health"
	"github.com/lcalzada-xor/wprov/internal/adapters/link"
	"github.com/lcalzada-xor/wprov/internal/adapters/mqtt"
	"github.com/lcalzada-xor/wprov/internal/adapters/provisioning"
	"github.com/lcalzada-xor/wprov/internal/adapters/storage"
	"github.com/lcalzada-xor/wprov/internal/adapters/web"
	"github.com/lcalzada-xor/wprov/internal/config"
	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
	"github.com/lcalzada-xor/wprov/internal/core/services/board"
	provisioningsvc "github.com/lcalzada-xor/wprov/internal/core/services/provisioning"
	"github.com/lcalzada-xor/wprov/internal/telemetry"
)

// apPollInterval is the wait between AP address queries.
const apPollInterval = 100 * time.Millisecond

// Application holds the wired components of the agent.
type Application struct {
	Config   *config.Config
	Store    *storage.SQLiteAdapter
	Link     ports.WirelessLink
	Machine  *board.Machine
	Listener *provisioning.TCPListener
	Console  *console.Console
	Web      *web.Server
	Health   *health.Server

	log     logr.Logger
	closers []io.Closer
}

// New creates the application. Operator console input is read from in and
// prompts go to out unless a serial console device is configured.
func New(cfg *config.Config, log logr.Logger, in io.Reader, out io.Writer) (*Application, error) {
	app := &Application{
		Config: cfg,
		log:    log,
	}

	if err := app.bootstrap(in, out); err != nil {
		app.close()
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}
	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap(in io.Reader, out io.Writer) error {
	cfg := app.Config
	telemetry.InitMetrics()

	// 1. Storage
	store, err := OpenStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	app.Store = store
	app.closers = append(app.closers, store)

	// 2. Radio
	app.Link = app.newLink()

	// 3. Operator console
	if cfg.Console.Device != "" {
		port, err := console.OpenSerial(cfg.Console.Device, cfg.Console.Baud)
		if err != nil {
			return fmt.Errorf("open console %s: %w", cfg.Console.Device, err)
		}
		app.closers = append(app.closers, port)
		in, out = port, port
	}
	app.Console = console.New(in, out, cfg.Console.DecisionTimeout, cfg.Console.DefaultDecision, app.log)

	// 4. Provisioning channel
	handler := provisioningsvc.NewHandler(store, nil, cfg.Store.Label, app.log)
	app.Listener = provisioning.NewTCPListener(
		fmt.Sprintf(":%d", cfg.Provisioning.Port), cfg.Provisioning.ReadTimeout, handler, app.log)

	deps := board.Deps{
		Store:    store,
		Link:     app.Link,
		Decider:  app.Console,
		Listener: app.Listener,
	}
	if !cfg.MDNS.Disabled {
		iface := ""
		if cfg.Link.Driver == "nmcli" {
			iface = cfg.Link.APInterface
		}
		deps.Announcer = discovery.NewMDNSAnnouncer(cfg.MDNS.Instance, cfg.MDNS.Service, iface, app.log)
	}
	if cfg.MQTT.Broker != "" {
		deps.Publisher = mqtt.NewPublisher(cfg.MQTT.Broker, cfg.MQTT.Topic, "", app.log)
	}

	// 5. Board
	app.Machine = board.NewMachine(app.boardConfig(), deps, app.log)
	handler.Attach(app.Machine)
	app.Console.Attach(app.Machine)

	// 6. Servers
	app.Web = web.NewServer(cfg.HTTPAddr, app.Machine, app.Machine, store, cfg.Store.Label, app.log)
	app.Health = health.NewServer(cfg.GRPCAddr, app.log)
	app.Machine.AddObserver(app.Web.WSManager)
	app.Machine.AddObserver(app.Health)

	return nil
}

func (app *Application) newLink() ports.WirelessLink {
	if app.Config.Link.Driver == "nmcli" {
		return link.NewNmcliLink(app.log, app.Config.Link.Interface, app.Config.Link.APInterface)
	}
	app.log.Info("Using simulated radio")
	return link.NewSimLink()
}

func (app *Application) boardConfig() board.Config {
	cfg := app.Config
	bc := board.DefaultConfig()
	bc.Label = cfg.Store.Label
	bc.AccessPoint = domain.AccessPointConfig{
		SSID:     cfg.AP.SSID,
		Password: cfg.AP.Password,
		Channel:  cfg.AP.Channel,
	}
	bc.ClientGrace = cfg.Grace.Client
	bc.APGrace = cfg.Grace.AP
	bc.APPollInterval = apPollInterval
	return bc
}

// Run starts the servers and the console, then drives the board until ctx
// ends. The board's error is returned; server failures are only logged.
func (app *Application) Run(ctx context.Context) error {
	defer app.close()

	go func() {
		if err := app.Web.Run(ctx); err != nil {
			app.log.Error(err, "Web server stopped", "addr", app.Config.HTTPAddr)
		}
	}()
	go func() {
		if err := app.Health.Run(ctx); err != nil {
			app.log.Error(err, "Health server stopped", "addr", app.Config.GRPCAddr)
		}
	}()
	go func() {
		if err := app.Console.Run(ctx); err != nil {
			app.log.Error(err, "Console stopped")
		}
	}()

	app.log.Info("wprov ready", "driver", app.Config.Link.Driver, "http", app.Config.HTTPAddr)
	return app.Machine.Run(ctx)
}

func (app *Application) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.log.Error(err, "Close failed")
		}
	}
	app.closers = nil
}

// OpenStore creates the database directory and opens the credential store.
func OpenStore(path string) (*storage.SQLiteAdapter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}
	store, err := storage.NewSQLiteAdapter(path)
	if err != nil {
		return nil, fmt.Errorf("failed to init credential store: %w", err)
	}
	return store, nil
}
