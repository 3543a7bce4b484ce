package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
)

// EnvPrefix prefixes every environment override, e.g. WPROV_AP_SSID.
const EnvPrefix = "WPROV"

// Config holds all application configuration.
type Config struct {
	AP           APConfig
	Provisioning ProvisioningConfig
	MDNS         MDNSConfig
	Store        StoreConfig
	Link         LinkConfig
	Console      ConsoleConfig
	Grace        GraceConfig
	MQTT         MQTTConfig
	HTTPAddr     string
	GRPCAddr     string
	Trace        bool
	Debug        bool
}

type APConfig struct {
	SSID     string
	Password string
	Channel  int
}

type ProvisioningConfig struct {
	Port        int
	ReadTimeout time.Duration
}

type MDNSConfig struct {
	Instance string
	Service  string
	Disabled bool
}

type StoreConfig struct {
	Path  string
	Label string
}

type LinkConfig struct {
	Driver      string // sim | nmcli
	Interface   string
	APInterface string
}

type ConsoleConfig struct {
	Device          string // empty reads stdin
	Baud            int
	DecisionTimeout time.Duration
	DefaultDecision domain.JoinDecision
}

type GraceConfig struct {
	Client time.Duration
	AP     time.Duration
}

type MQTTConfig struct {
	Broker string
	Topic  string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ap.ssid", "my_network")
	v.SetDefault("ap.password", "my_password")
	v.SetDefault("ap.channel", 1)
	v.SetDefault("provisioning.port", 10001)
	v.SetDefault("provisioning.read_timeout", "30s")
	v.SetDefault("mdns.instance", "low_level_microcontroller")
	v.SetDefault("mdns.service", "_provision._tcp")
	v.SetDefault("mdns.disabled", false)
	v.SetDefault("store.path", defaultDBPath())
	v.SetDefault("store.label", "wifi")
	v.SetDefault("link.driver", "sim")
	v.SetDefault("link.interface", "wlan0")
	v.SetDefault("link.ap_interface", "")
	v.SetDefault("console.device", "")
	v.SetDefault("console.baud", 115200)
	v.SetDefault("console.decision_timeout", "30s")
	v.SetDefault("console.default_decision", "retry")
	v.SetDefault("grace.client", "1s")
	v.SetDefault("grace.ap", "10s")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "wprov")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":9000")
	v.SetDefault("trace.enabled", false)
	v.SetDefault("debug", false)
}

// New returns a viper instance with defaults and WPROV_ environment
// overrides. Dots in keys map to underscores in variable names.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds every flag of fs whose name is a config key (dashes in
// flag names stand for underscores).
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	known := make(map[string]bool)
	for _, k := range v.AllKeys() {
		known[k] = true
	}

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if known[key] {
			err = v.BindPFlag(key, f)
		}
	})
	return err
}

// ReadFile merges a YAML/TOML/JSON config file. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// Load decodes and validates v.
func Load(v *viper.Viper) (*Config, error) {
	raw := v.GetString("console.default_decision")
	decision, ok := domain.ParseJoinDecision(raw)
	if !ok {
		return nil, fmt.Errorf("console.default_decision %q: want reset or retry", raw)
	}

	cfg := &Config{
		AP: APConfig{
			SSID:     v.GetString("ap.ssid"),
			Password: v.GetString("ap.password"),
			Channel:  v.GetInt("ap.channel"),
		},
		Provisioning: ProvisioningConfig{
			Port:        v.GetInt("provisioning.port"),
			ReadTimeout: v.GetDuration("provisioning.read_timeout"),
		},
		MDNS: MDNSConfig{
			Instance: v.GetString("mdns.instance"),
			Service:  v.GetString("mdns.service"),
			Disabled: v.GetBool("mdns.disabled"),
		},
		Store: StoreConfig{
			Path:  v.GetString("store.path"),
			Label: v.GetString("store.label"),
		},
		Link: LinkConfig{
			Driver:      strings.ToLower(v.GetString("link.driver")),
			Interface:   v.GetString("link.interface"),
			APInterface: v.GetString("link.ap_interface"),
		},
		Console: ConsoleConfig{
			Device:          v.GetString("console.device"),
			Baud:            v.GetInt("console.baud"),
			DecisionTimeout: v.GetDuration("console.decision_timeout"),
			DefaultDecision: decision,
		},
		Grace: GraceConfig{
			Client: v.GetDuration("grace.client"),
			AP:     v.GetDuration("grace.ap"),
		},
		MQTT: MQTTConfig{
			Broker: v.GetString("mqtt.broker"),
			Topic:  v.GetString("mqtt.topic"),
		},
		HTTPAddr: v.GetString("http.addr"),
		GRPCAddr: v.GetString("grpc.addr"),
		Trace:    v.GetBool("trace.enabled"),
		Debug:    v.GetBool("debug"),
	}
	if cfg.Link.APInterface == "" {
		cfg.Link.APInterface = cfg.Link.Interface
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the board cannot run with.
func (c *Config) Validate() error {
	ap := domain.NetworkCredentials{SSID: c.AP.SSID, Password: c.AP.Password}
	if err := ap.Validate(); err != nil {
		return fmt.Errorf("ap: %w", err)
	}
	if c.AP.Password != "" && len(c.AP.Password) < 8 {
		return fmt.Errorf("ap.password: WPA2 passphrase needs at least 8 characters")
	}
	if c.AP.Channel < 1 || c.AP.Channel > 165 {
		return fmt.Errorf("ap.channel %d out of range", c.AP.Channel)
	}
	if c.Provisioning.Port < 0 || c.Provisioning.Port > 65535 {
		return fmt.Errorf("provisioning.port %d out of range", c.Provisioning.Port)
	}
	if c.Store.Label == "" {
		return fmt.Errorf("store.label must not be empty")
	}
	switch c.Link.Driver {
	case "sim":
	case "nmcli":
		if !domain.IsValidInterface(c.Link.Interface) {
			return fmt.Errorf("link.interface %q is not a valid interface name", c.Link.Interface)
		}
		if !domain.IsValidInterface(c.Link.APInterface) {
			return fmt.Errorf("link.ap_interface %q is not a valid interface name", c.Link.APInterface)
		}
	default:
		return fmt.Errorf("link.driver %q: want sim or nmcli", c.Link.Driver)
	}
	if c.Grace.Client < 0 || c.Grace.AP < 0 {
		return fmt.Errorf("grace periods must not be negative")
	}
	return nil
}

// defaultDBPath returns ~/.wprov/wprov.db, or a file in the working
// directory when the home directory is unusable.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "wprov.db"
	}
	dir := filepath.Join(home, ".wprov")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "wprov.db"
	}
	return filepath.Join(dir, "wprov.db")
}
