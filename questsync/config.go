package questsync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/irysflip/questsync/internal/gateways/database"
)

const (
	EnvRPCURL     = "QUESTSYNC_RPC_URL"
	EnvPrivateKey = "QUESTSYNC_PRIVATE_KEY"
	EnvDBPassword = "QUESTSYNC_DB_PASSWORD"
	EnvWebhookURL = "QUESTSYNC_WEBHOOK_URL"
)

// LoadConfig reads the TOML file at path, applies .env and environment
// overrides, then fills defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", slog.Any("error", err))
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig         `toml:"log"`
	Chain   ChainConfig       `toml:"chain"`
	Sync    SyncConfig        `toml:"sync"`
	DB      database.DBConfig `toml:"db"`
	Archive ArchiveConfig     `toml:"archive"`
	Notify  NotifyConfig      `toml:"notify"`
}

type LogConfig struct {
	Level slog.Level `toml:"level"`
	Color *bool      `toml:"color"`
}

type ChainConfig struct {
	RPCURL              string   `toml:"rpc_url"`
	ChainID             int64    `toml:"chain_id"`
	Contract            string   `toml:"contract"`
	PrivateKey          string   `toml:"private_key"`
	ABIPath             string   `toml:"abi_path"`
	ConfirmTransactions bool     `toml:"confirm_transactions"`
	ReceiptPollInterval Duration `toml:"receipt_poll_interval"`
	ConfirmTimeout      Duration `toml:"confirm_timeout"`
}

type SyncConfig struct {
	Timezone          string   `toml:"timezone"`
	TickInterval      Duration `toml:"tick_interval"`
	SyncInterval      Duration `toml:"sync_interval"`
	GraceWindow       Duration `toml:"grace_window"`
	AutoLogin         bool     `toml:"auto_login"`
	AutoLoginInterval Duration `toml:"auto_login_interval"`
	MaxSnapshotAge    Duration `toml:"max_snapshot_age"`
	Players           []string `toml:"players"`
	CacheSize         int      `toml:"cache_size"`
}

type ArchiveConfig struct {
	Endpoint string `toml:"endpoint"`
	Region   string `toml:"region"`
	Bucket   string `toml:"bucket"`
	Key      string `toml:"key"`
	Secret   string `toml:"secret"`
	Prefix   string `toml:"prefix"`
}

func (c ArchiveConfig) Enabled() bool { return c.Bucket != "" }

type NotifyConfig struct {
	WebhookURL     string `toml:"webhook_url"`
	ExplorerTxURL  string `toml:"explorer_tx_url"`
	AnnounceResets bool   `toml:"announce_resets"`
}

func (c NotifyConfig) Enabled() bool { return c.WebhookURL != "" }

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRPCURL); v != "" {
		c.Chain.RPCURL = v
	}
	if v := os.Getenv(EnvPrivateKey); v != "" {
		c.Chain.PrivateKey = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv(EnvWebhookURL); v != "" {
		c.Notify.WebhookURL = v
	}
}

func (c *Config) applyDefaults() {
	setDefault(&c.Sync.TickInterval, 60*time.Second)
	setDefault(&c.Sync.SyncInterval, 60*time.Second)
	setDefault(&c.Sync.GraceWindow, 5*time.Minute)
	setDefault(&c.Sync.AutoLoginInterval, 2*time.Minute)
	setDefault(&c.Sync.MaxSnapshotAge, time.Minute)
	setDefault(&c.Chain.ReceiptPollInterval, 2*time.Second)
	setDefault(&c.Chain.ConfirmTimeout, 2*time.Minute)
	if c.Sync.CacheSize <= 0 {
		c.Sync.CacheSize = 16
	}
	if c.DB.Driver == "" {
		c.DB.Driver = database.DriverSQLite
	}
	if c.DB.Driver == database.DriverSQLite && c.DB.Path == "" {
		c.DB.Path = "questsync.db"
	}
}

func setDefault(d *Duration, v time.Duration) {
	if d.Duration <= 0 {
		d.Duration = v
	}
}

func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return errors.New("chain.rpc_url is required")
	}
	if !common.IsHexAddress(c.Chain.Contract) {
		return fmt.Errorf("chain.contract %q is not an address", c.Chain.Contract)
	}
	for _, p := range c.Sync.Players {
		if !common.IsHexAddress(p) {
			return fmt.Errorf("sync.players entry %q is not an address", p)
		}
	}
	if _, err := time.LoadLocation(c.Sync.Timezone); c.Sync.Timezone != "" && c.Sync.Timezone != "Local" && err != nil {
		return fmt.Errorf("sync.timezone: %w", err)
	}
	return nil
}

// PlayerAddresses returns the configured players, parsed.
func (c *Config) PlayerAddresses() []common.Address {
	out := make([]common.Address, 0, len(c.Sync.Players))
	for _, p := range c.Sync.Players {
		out = append(out, common.HexToAddress(p))
	}
	return out
}

// Duration decodes TOML strings such as "90s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
