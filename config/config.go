package config

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("api_pro_key", "API_PRO_KEY")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("log_level", "LOG_LEVEL")
		viper.BindEnv("lang", "LANG")
		viper.BindEnv("mode", "MODE")

		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("store_backend", "STORE_BACKEND")
		viper.BindEnv("store_path", "STORE_PATH")
		viper.BindEnv("store_max_failures", "STORE_MAX_FAILURES")

		viper.BindEnv("transport", "TRANSPORT")
		viper.BindEnv("kafka_brokers", "KAFKA_BROKERS")
		viper.BindEnv("kafka_group", "KAFKA_GROUP")
		viper.BindEnv("topic_submissions", "TOPIC_SUBMISSIONS")
		viper.BindEnv("topic_notifications", "TOPIC_NOTIFICATIONS")
		viper.BindEnv("topic_snapshots", "TOPIC_SNAPSHOTS")

		viper.BindEnv("price_source", "PRICE_SOURCE")
		viper.BindEnv("quote_asset", "QUOTE_ASSET")
		viper.BindEnv("instruments", "INSTRUMENTS")
		viper.BindEnv("binance_api_key", "BINANCE_API_KEY")
		viper.BindEnv("binance_api_secret", "BINANCE_API_SECRET")
		viper.BindEnv("fetch_retries", "FETCH_RETRIES")

		viper.BindEnv("tick_interval", "TICK_INTERVAL")
		viper.BindEnv("poll_interval", "POLL_INTERVAL")
		viper.BindEnv("description_interval", "DESCRIPTION_INTERVAL")
		viper.BindEnv("send_max_attempts", "SEND_MAX_ATTEMPTS")
		viper.BindEnv("send_retry_delay", "SEND_RETRY_DELAY")
		viper.BindEnv("send_rate", "SEND_RATE")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("log_level", "info")
		viper.SetDefault("lang", "en")
		viper.SetDefault("mode", "all")

		viper.SetDefault("db_path", "/app/data/bot.db")
		viper.SetDefault("store_backend", "file")
		viper.SetDefault("store_path", "/app/data/rules.json")
		viper.SetDefault("store_max_failures", 10)

		viper.SetDefault("transport", "memory")
		viper.SetDefault("kafka_brokers", "localhost:9092")
		viper.SetDefault("kafka_group", "pair-alert-bot")
		viper.SetDefault("topic_submissions", "rule_submissions")
		viper.SetDefault("topic_notifications", "notifications")
		viper.SetDefault("topic_snapshots", "market_snapshots")

		viper.SetDefault("price_source", "binance")
		viper.SetDefault("quote_asset", "USDC")
		viper.SetDefault("instruments", "BTC,ETH,BNB,SOL,XRP,DOGE,ADA,TRX,TON,LTC,USDT,USDC")
		viper.SetDefault("fetch_retries", 5)

		viper.SetDefault("tick_interval", time.Second)
		viper.SetDefault("poll_interval", time.Second)
		viper.SetDefault("description_interval", time.Minute)
		viper.SetDefault("send_max_attempts", 10)
		viper.SetDefault("send_retry_delay", time.Second)
		viper.SetDefault("send_rate", 25.0)
	})
}

// LoadFile merges an optional config file over env defaults
func LoadFile(path string) error {
	InitConfig()
	if path == "" {
		return nil
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "could not read config file %s", path)
	}
	return nil
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

func GetFloat64(key string) float64 {
	InitConfig()
	return viper.GetFloat64(key)
}

func GetDuration(key string) time.Duration {
	InitConfig()
	return viper.GetDuration(key)
}

// GetList reads a comma separated value, dropping blanks
func GetList(key string) []string {
	InitConfig()

	var items []string
	for _, item := range strings.Split(viper.GetString(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
