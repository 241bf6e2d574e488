package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	World     WorldConfig     `mapstructure:"world"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Records   RecordsConfig   `mapstructure:"records"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	HTTPAddress string        `mapstructure:"http_address"`
	RPCAddress  string        `mapstructure:"rpc_address"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	SendQueue   int           `mapstructure:"send_queue"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

type WorldConfig struct {
	CatalogPath string `mapstructure:"catalog_path"` // empty = embedded catalog

	PickupRange float64 `mapstructure:"pickup_range"`
	AttackRange float64 `mapstructure:"attack_range"`
	HealRange   float64 `mapstructure:"heal_range"`
	MaxHealth   int     `mapstructure:"max_health"`

	AnchorLat float64 `mapstructure:"anchor_lat"`
	AnchorLng float64 `mapstructure:"anchor_lng"`

	SpawnMinInterval time.Duration `mapstructure:"spawn_min_interval"`
	SpawnMaxInterval time.Duration `mapstructure:"spawn_max_interval"`
	SpawnRadius      float64       `mapstructure:"spawn_radius"`
	InitialItems     int           `mapstructure:"initial_items"`

	CollectDurations    map[string]time.Duration `mapstructure:"collect_durations"`
	DropCollectDuration time.Duration            `mapstructure:"drop_collect_duration"`

	DefaultDamage         int  `mapstructure:"default_damage"`
	DefaultHeal           int  `mapstructure:"default_heal"`
	ConsumeWeaponOnAttack bool `mapstructure:"consume_weapon_on_attack"`

	CollectExperience int `mapstructure:"collect_experience"`
	AttackExperience  int `mapstructure:"attack_experience"`
	HealExperience    int `mapstructure:"heal_experience"`

	Avatars []string `mapstructure:"avatars"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type RecordsConfig struct {
	Driver     string         `mapstructure:"driver"` // none, gorm, postgres, journal
	Postgres   PostgresConfig `mapstructure:"postgres"`
	JournalDir string         `mapstructure:"journal_dir"`
	QueueSize  int            `mapstructure:"queue_size"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":9090")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.send_queue", 64)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("world.pickup_range", 0.001)
	v.SetDefault("world.attack_range", 0.0002)
	v.SetDefault("world.heal_range", 0.0002)
	v.SetDefault("world.max_health", 100)
	v.SetDefault("world.anchor_lat", 51.5074)
	v.SetDefault("world.anchor_lng", -0.1278)
	v.SetDefault("world.spawn_min_interval", 30*time.Second)
	v.SetDefault("world.spawn_max_interval", 60*time.Second)
	v.SetDefault("world.spawn_radius", 0.002)
	v.SetDefault("world.initial_items", 8)
	v.SetDefault("world.collect_durations", map[string]time.Duration{
		"weapon":      5 * time.Second,
		"armor":       4 * time.Second,
		"consumable":  2 * time.Second,
		"collectible": 3 * time.Second,
	})
	v.SetDefault("world.drop_collect_duration", time.Second)
	v.SetDefault("world.default_damage", 10)
	v.SetDefault("world.default_heal", 20)
	v.SetDefault("world.consume_weapon_on_attack", false)
	v.SetDefault("world.collect_experience", 20)
	v.SetDefault("world.attack_experience", 10)
	v.SetDefault("world.heal_experience", 5)
	v.SetDefault("world.avatars", []string{"default", "explorer", "knight", "mage", "ranger"})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.messages_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("records.driver", "none")
	v.SetDefault("records.postgres.host", "localhost")
	v.SetDefault("records.postgres.port", 5432)
	v.SetDefault("records.postgres.user", "geoworld")
	v.SetDefault("records.postgres.dbname", "geoworld")
	v.SetDefault("records.journal_dir", "data/records")
	v.SetDefault("records.queue_size", 1024)

	v.SetDefault("metrics.namespace", "geoworld")
}

// LoadConfig reads config.yaml from path. A missing file is not an error;
// defaults and GEOWORLD_* environment variables still apply.
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("geoworld")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
