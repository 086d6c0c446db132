package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Visibility mode of uploads.
const (
	ModePublic  = "public"
	ModePrivate = "private"
)

var formats = map[string]bool{
	"auto": true, "jpeg": true, "png": true, "webp": true, "gif": true, "avif": true,
}

var fits = map[string]bool{
	"cover": true, "contain": true, "fill": true, "inside": true, "outside": true,
}

// Transform holds gateway-side image transformation options. All
// transformation happens on the gateway; nothing is re-encoded locally.
type Transform struct {
	Enabled bool
	Width   int
	Height  int
	Quality int
	Format  string
	Fit     string
}

type Config struct {
	VaultPath string
	DataPath  string

	APIToken string
	Endpoint string
	Gateway  string
	Mode     string

	AutoUploadPaste bool
	AutoUploadDrop  bool

	BackupOriginals bool
	BackupFolder    string

	GroupName string

	Transform Transform

	ListenAddr      string
	RefreshInterval time.Duration
	LogLevel        string

	path string
	v    *viper.Viper
}

const defaultEndpoint = "https://api.pinata.cloud"

// Load reads the config file at path (created with defaults if absent) and
// applies VAULTPIN_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("vaultpin")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := fromViper(v, path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper, path string) *Config {
	return &Config{
		VaultPath: v.GetString("vault_path"),
		DataPath:  v.GetString("data_path"),

		APIToken: v.GetString("api_token"),
		Endpoint: v.GetString("endpoint"),
		Gateway:  v.GetString("gateway"),
		Mode:     v.GetString("mode"),

		AutoUploadPaste: v.GetBool("auto_upload_paste"),
		AutoUploadDrop:  v.GetBool("auto_upload_drop"),

		BackupOriginals: v.GetBool("backup_originals"),
		BackupFolder:    v.GetString("backup_folder"),

		GroupName: v.GetString("group_name"),

		Transform: Transform{
			Enabled: v.GetBool("transform.enabled"),
			Width:   v.GetInt("transform.width"),
			Height:  v.GetInt("transform.height"),
			Quality: v.GetInt("transform.quality"),
			Format:  v.GetString("transform.format"),
			Fit:     v.GetString("transform.fit"),
		},

		ListenAddr:      v.GetString("listen_addr"),
		RefreshInterval: v.GetDuration("refresh_interval"),
		LogLevel:        v.GetString("log_level"),

		path: path,
		v:    v,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vault_path", ".")
	v.SetDefault("data_path", "")
	v.SetDefault("endpoint", defaultEndpoint)
	v.SetDefault("gateway", "gateway.pinata.cloud")
	v.SetDefault("mode", ModePublic)
	v.SetDefault("auto_upload_paste", true)
	v.SetDefault("auto_upload_drop", true)
	v.SetDefault("backup_originals", false)
	v.SetDefault("backup_folder", ".vaultpin-backup")
	v.SetDefault("group_name", "")
	v.SetDefault("transform.enabled", false)
	v.SetDefault("transform.width", 0)
	v.SetDefault("transform.height", 0)
	v.SetDefault("transform.quality", 0)
	v.SetDefault("transform.format", "auto")
	v.SetDefault("transform.fit", "cover")
	v.SetDefault("listen_addr", "127.0.0.1:8087")
	v.SetDefault("refresh_interval", 30*time.Minute)
	v.SetDefault("log_level", "info")
}

func (c *Config) Validate() error {
	if c.Mode != ModePublic && c.Mode != ModePrivate {
		return fmt.Errorf("invalid mode %q (want public or private)", c.Mode)
	}
	if c.Transform.Quality < 0 || c.Transform.Quality > 100 {
		return fmt.Errorf("transform quality %d out of range [0,100]", c.Transform.Quality)
	}
	if !formats[c.Transform.Format] {
		return fmt.Errorf("invalid transform format %q", c.Transform.Format)
	}
	if !fits[c.Transform.Fit] {
		return fmt.Errorf("invalid transform fit %q", c.Transform.Fit)
	}
	return nil
}

// Set updates one key and persists the whole file. The settings surface is
// the only mutator; everything else treats the config as read-only.
func (c *Config) Set(key, value string) error {
	if c.v == nil {
		return fmt.Errorf("config not loaded from file")
	}
	known := map[string]bool{
		"vault_path": true, "data_path": true, "api_token": true,
		"endpoint": true, "gateway": true, "mode": true,
		"auto_upload_paste": true, "auto_upload_drop": true,
		"backup_originals": true, "backup_folder": true, "group_name": true,
		"transform.enabled": true, "transform.width": true,
		"transform.height": true, "transform.quality": true,
		"transform.format": true, "transform.fit": true,
		"listen_addr": true, "refresh_interval": true, "log_level": true,
	}
	if !known[key] {
		return fmt.Errorf("unknown config key %q", key)
	}
	prev := c.v.Get(key)
	c.v.Set(key, value)
	// Never persist a file a later Load would refuse.
	if err := fromViper(c.v, c.path).Validate(); err != nil {
		c.v.Set(key, prev)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return c.Save()
}

func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config has no backing file")
	}
	if dir := filepath.Dir(c.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return c.v.WriteConfigAs(c.path)
}

// JournalPath is the sqlite upload journal location; it defaults to a dot
// directory inside the vault.
func (c *Config) JournalPath() string {
	if c.DataPath != "" {
		return filepath.Join(c.DataPath, "journal.sqlite")
	}
	return filepath.Join(c.VaultPath, ".vaultpin", "journal.sqlite")
}
