package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ftpdisplay-go/bus"
	"ftpdisplay-go/errcode"
	"ftpdisplay-go/types"
	"ftpdisplay-go/x/mathx"
	"ftpdisplay-go/x/strx"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

// Environment overrides applied after file and embedded defaults.
const (
	EnvWiFiSSID     = "FTPD_WIFI_SSID"
	EnvWiFiPassword = "FTPD_WIFI_PASSWORD"
	EnvFTPUser      = "FTPD_FTP_USER"
	EnvFTPPassword  = "FTPD_FTP_PASSWORD"
	EnvTimezone     = "FTPD_TZ"
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type Config struct {
	Device  string  `yaml:"device"`
	WiFi    WiFi    `yaml:"wifi"`
	FTP     FTP     `yaml:"ftp"`
	Time    Time    `yaml:"time"`
	Log     Log     `yaml:"log"`
	Monitor Monitor `yaml:"monitor"`
	Storage Storage `yaml:"storage"`
}

type WiFi struct {
	SSID           string        `yaml:"ssid"`
	Password       string        `yaml:"password"`
	MaxRetries     int           `yaml:"max_retries"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type FTP struct {
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	Port        int           `yaml:"port"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

type Time struct {
	Servers      []string      `yaml:"servers"`
	Timezone     string        `yaml:"timezone"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	Resync       time.Duration `yaml:"resync"`
}

type Log struct {
	Lines     int `yaml:"lines"`
	LineBytes int `yaml:"line_bytes"`
}

type Monitor struct {
	Tick              time.Duration `yaml:"tick"`
	StorageCheckEvery int           `yaml:"storage_check_every"`
}

type Storage struct {
	Internal       string `yaml:"internal"`
	Removable      string `yaml:"removable"`
	FormatInternal bool   `yaml:"format_internal"`
}

// Default decodes the embedded defaults for device.
func Default(device string) (Config, error) {
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return Config{}, &errcode.E{C: errcode.InvalidConfig, Op: "config.Default", Msg: "no embedded config for device: " + device}
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Config{}, errcode.Wrap(errcode.InvalidConfig, "config.Default", err)
	}
	if c.Device == "" {
		c.Device = device
	}
	return c, nil
}

// Load resolves the configuration for device: embedded defaults, then the
// optional YAML file at path, then environment overrides.
func Load(device, path string) (Config, error) {
	c, err := Default(device)
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errcode.Wrap(errcode.InvalidConfig, "config.Load", err)
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return Config{}, errcode.Wrap(errcode.InvalidConfig, "config.Load", err)
		}
	}
	c.ApplyEnv(os.Getenv)
	c.normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadEnvFile exports KEY=value pairs from path into the process environment.
// A missing file is not an error; existing variables win.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errcode.Wrap(errcode.InvalidConfig, "config.LoadEnvFile", err)
	}
	return nil
}

// ApplyEnv overlays non-empty environment values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	c.WiFi.SSID = strx.Coalesce(getenv(EnvWiFiSSID), c.WiFi.SSID)
	c.WiFi.Password = strx.Coalesce(getenv(EnvWiFiPassword), c.WiFi.Password)
	c.FTP.User = strx.Coalesce(getenv(EnvFTPUser), c.FTP.User)
	c.FTP.Password = strx.Coalesce(getenv(EnvFTPPassword), c.FTP.Password)
	c.Time.Timezone = strx.Coalesce(getenv(EnvTimezone), c.Time.Timezone)
}

func (c *Config) normalize() {
	c.WiFi.MaxRetries = mathx.Clamp(mathx.OrDefault(c.WiFi.MaxRetries, 10), 1, 100)
	c.WiFi.ConnectTimeout = mathx.OrDefault(c.WiFi.ConnectTimeout, 30*time.Second)
	c.FTP.SettleDelay = mathx.OrDefault(c.FTP.SettleDelay, 500*time.Millisecond)
	c.FTP.Port = mathx.OrDefault(c.FTP.Port, 21)
	c.Time.QueryTimeout = mathx.OrDefault(c.Time.QueryTimeout, 5*time.Second)
	c.Time.Timezone = strx.Coalesce(c.Time.Timezone, "UTC")
	c.Log.Lines = mathx.Clamp(mathx.OrDefault(c.Log.Lines, 50), 1, 500)
	c.Log.LineBytes = mathx.Clamp(mathx.OrDefault(c.Log.LineBytes, 100), 16, 1024)
	c.Monitor.Tick = mathx.Clamp(mathx.OrDefault(c.Monitor.Tick, time.Second), 100*time.Millisecond, time.Minute)
	c.Monitor.StorageCheckEvery = mathx.Clamp(mathx.OrDefault(c.Monitor.StorageCheckEvery, 10), 1, 3600)

	servers := c.Time.Servers[:0]
	for _, s := range c.Time.Servers {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	c.Time.Servers = servers
}

// Validate rejects configurations boot cannot run with.
func (c Config) Validate() error {
	var errs []error
	if !mathx.Between(c.FTP.Port, 1, 65535) {
		errs = append(errs, errors.New("ftp.port must be within 1..65535"))
	}
	if c.FTP.User == "" {
		errs = append(errs, errors.New("ftp.user is required"))
	}
	if c.Storage.Internal == "" && c.Storage.Removable == "" {
		errs = append(errs, errors.New("storage: at least one of internal or removable is required"))
	}
	if c.Time.Resync < 0 {
		errs = append(errs, errors.New("time.resync must not be negative"))
	}
	if len(errs) > 0 {
		return &errcode.E{C: errcode.InvalidConfig, Op: "config.Validate", Err: errors.Join(errs...)}
	}
	return nil
}

// ApplySettings applies the on-device settings editor. Credentials are taken
// as entered; the port is accepted only within 1..65535, otherwise the current
// port is kept.
func ApplySettings(cur FTP, user, password, portText string) FTP {
	cur.User = user
	cur.Password = password
	if p, err := strconv.Atoi(strings.TrimSpace(portText)); err == nil && mathx.Between(p, 1, 65535) {
		cur.Port = p
	}
	return cur
}

// MonitorConfig is the bus form of the monitor section.
func (c Config) MonitorConfig() types.MonitorConfig {
	return types.MonitorConfig{TickMs: int(c.Monitor.Tick / time.Millisecond), StorageCheckEvery: c.Monitor.StorageCheckEvery}
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

// ConfigService publishes config sections as retained messages under
// "config/<section>" so running services pick up changes.
type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// Publish emits every section of c.
func (s *ConfigService) Publish(conn *bus.Connection, c Config) {
	conn.Publish(conn.NewMessage(bus.T(configPrefix, "monitor"), c.MonitorConfig(), true))
	conn.Publish(conn.NewMessage(bus.T(configPrefix, "ftp"), c.FTP, true))
	conn.Publish(conn.NewMessage(bus.T(configPrefix, "time"), c.Time, true))
	conn.Publish(conn.NewMessage(bus.T(configPrefix, "log"), c.Log, true))
}
