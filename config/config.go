package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MonitorAddress string `mapstructure:"monitor_address"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type WalletConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Address string `mapstructure:"address"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// GameConfig holds the round timings shared by every room. Phase durations
// are whole seconds because clients render them as countdowns.
type GameConfig struct {
	BettingSeconds   int   `mapstructure:"betting_seconds"`
	SpinSeconds      int   `mapstructure:"spin_seconds"`
	ResultsSeconds   int   `mapstructure:"results_seconds"`
	CountdownSeconds int   `mapstructure:"countdown_seconds"`
	RaceTickMillis   int   `mapstructure:"race_tick_millis"`
	RaceFinish       int   `mapstructure:"race_finish"`
	RaceAdvanceMin   int   `mapstructure:"race_advance_min"`
	RaceAdvanceMax   int   `mapstructure:"race_advance_max"`
	MinSeats         int   `mapstructure:"min_seats"`
	MaxSeats         int   `mapstructure:"max_seats"`
	MaxBet           int64 `mapstructure:"max_bet"`
}

func (g GameConfig) RaceTick() time.Duration {
	return time.Duration(g.RaceTickMillis) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.monitor_address", ":9100")
	v.SetDefault("wallet.address", "localhost:9090")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("game.betting_seconds", 20)
	v.SetDefault("game.spin_seconds", 5)
	v.SetDefault("game.results_seconds", 8)
	v.SetDefault("game.countdown_seconds", 3)
	v.SetDefault("game.race_tick_millis", 500)
	v.SetDefault("game.race_finish", 100)
	v.SetDefault("game.race_advance_min", 1)
	v.SetDefault("game.race_advance_max", 9)
	v.SetDefault("game.min_seats", 2)
	v.SetDefault("game.max_seats", 6)
	v.SetDefault("game.max_bet", 1000000)
}

// LoadConfig reads config.yaml from path. A missing file is not an error;
// the server then runs on defaults and environment overrides.
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	setDefaults(v)
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}
