package config

import (
	"github.com/rs/zerolog/log"
)

// EndpointConfig holds the external services the rebalancer talks to.
type EndpointConfig struct {
	// IndexerAPI serves positions and bin arrays as JSON.
	IndexerAPI    string
	IndexerAPIKey string
	// IndexerRPS caps requests per second against the indexer.
	IndexerRPS float64
	// ExecutorAPI is the signing service that builds and submits transactions.
	ExecutorAPI string

	TelegramBotToken string
	TelegramChatID   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
}

// loadEndpointConfig loads endpoint configuration from environment variables.
// In live mode the indexer and executor endpoints are mandatory.
func loadEndpointConfig(live bool) (EndpointConfig, error) {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var (
		ep  EndpointConfig
		err error
	)

	if live {
		if ep.IndexerAPI, err = getEnv("INDEXER_API"); err != nil {
			return ep, err
		}
		if ep.ExecutorAPI, err = getEnv("EXECUTOR_API"); err != nil {
			return ep, err
		}
	} else {
		ep.IndexerAPI = getEnvOrDefault("INDEXER_API", "")
		ep.ExecutorAPI = getEnvOrDefault("EXECUTOR_API", "")
	}
	ep.IndexerAPIKey = getEnvOrDefault("INDEXER_API_KEY", "")
	if ep.IndexerRPS, err = getEnvAsFloat64("INDEXER_RPS", 5); err != nil {
		return ep, err
	}

	ep.TelegramBotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", "")
	ep.TelegramChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", "")

	ep.RedisAddr = getEnvOrDefault("REDIS_ADDR", "")
	ep.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", "")
	ep.RedisChannel = getEnvOrDefault("REDIS_CHANNEL", "dlmm:rebalance-events")
	if ep.RedisDB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return ep, err
	}

	log.Debug().
		Str("IndexerAPI", ep.IndexerAPI).
		Str("ExecutorAPI", ep.ExecutorAPI).
		Bool("Telegram", ep.TelegramBotToken != "" && ep.TelegramChatID != "").
		Str("RedisAddr", ep.RedisAddr).
		Msg("Endpoint configuration loaded successfully.")

	return ep, nil
}
