package config

import (
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"3001"`
	JWTSecret  string `env:"JWT_SECRET" envDefault:"super-secret-key-change-me"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"typeduel"`

	ChainRPCURL      string `env:"CHAIN_RPC_URL" envDefault:"https://testnet-rpc.monad.xyz"`
	ChainID          int64  `env:"CHAIN_ID" envDefault:"10143"`
	ServerPrivateKey string `env:"SERVER_PRIVATE_KEY"`
	ContractAddress  string `env:"CONTRACT_ADDRESS"`
	EntryFee         string `env:"ENTRY_FEE_MON" envDefault:"0.1"`

	MaxPlayersPerGame   int `env:"MAX_PLAYERS_PER_GAME" envDefault:"2"`
	GameDurationSeconds int `env:"GAME_DURATION_SECONDS" envDefault:"60"`
	GraceDelaySeconds   int `env:"GRACE_DELAY_SECONDS" envDefault:"3"`
	QueueTTLSeconds     int `env:"QUEUE_TTL_SECONDS" envDefault:"300"`
	PayoutRetries       int `env:"PAYOUT_RETRIES" envDefault:"4"`
}

func Load() *Config {
	// A local .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("config: loaded .env")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("config: invalid environment: %v", err)
	}
	return cfg
}
