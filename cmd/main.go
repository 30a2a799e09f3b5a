package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/adshao/go-binance/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"pair-alert-bot/config"
	"pair-alert-bot/internal/alert"
	"pair-alert-bot/internal/database"
	"pair-alert-bot/internal/dialog"
	"pair-alert-bot/internal/metrics"
	"pair-alert-bot/internal/price"
	"pair-alert-bot/internal/queue"
	"pair-alert-bot/internal/store"
	"pair-alert-bot/internal/telegram"
	"pair-alert-bot/lib/translation"
)

const (
	modeAll       = "all"
	modeBot       = "bot"
	modeEvaluator = "evaluator"
)

func main() {
	os.Exit(run())
}

func run() int {
	configFile := pflag.String("config", "", "optional config file (yaml, json or toml)")
	mode := pflag.String("mode", "", "process role: all, bot or evaluator (overrides MODE)")
	pflag.Parse()

	if err := config.LoadFile(*configFile); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *mode == "" {
		*mode = config.GetString("mode")
	}
	setupLogging()

	runBot := *mode == modeAll || *mode == modeBot
	runEvaluator := *mode == modeAll || *mode == modeEvaluator
	if !runBot && !runEvaluator {
		log.Fatalf("Unknown mode %q", *mode)
	}

	log.Infof("Using language %s", translation.Setup("locales", config.GetString("lang")))

	if err := database.InitDB(config.GetString("db_path")); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	m := metrics.New(prometheus.DefaultRegisterer)
	m.LoadFromDB()

	transport, err := newTransport(runBot, runEvaluator)
	if err != nil {
		log.Fatalf("Failed to create transport: %v", err)
	}
	defer transport.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	exitCode := 0

	var rules *store.Store
	if runEvaluator {
		rules = store.New(newSnapshotter())
		if err := rules.Load(false); err != nil {
			log.Fatalf("Failed to load rules: %v", err)
		}

		provider, err := newProvider()
		if err != nil {
			log.Fatalf("Failed to create price provider: %v", err)
		}
		source := price.NewSource(provider, config.GetInt("fetch_retries"), time.Second)
		engine := alert.NewEngine(source, rules, transport, m, alert.Config{
			TickInterval:     config.GetDuration("tick_interval"),
			MaxStoreFailures: config.GetInt("store_max_failures"),
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := engine.Run(ctx); err != nil {
				log.Errorf("Condition engine stopped: %v", err)
				exitCode = 1
				cancel()
			}
		}()
	}

	var bot *telegram.Bot
	if runBot {
		bot, err = telegram.NewBot(telegram.BotConfig{
			Token:          config.GetString("telegram_bot_token"),
			Debug:          config.GetBool("debug"),
			UpdatesTimeout: 60,
		})
		if err != nil {
			log.Fatalf("Failed to create bot: %v", err)
		}

		dispatcher := telegram.NewDispatcher(bot.API, telegram.DispatcherConfig{
			MaxAttempts: config.GetInt("send_max_attempts"),
			RetryDelay:  config.GetDuration("send_retry_delay"),
			Rate:        config.GetFloat64("send_rate"),
		}, m)
		conversations := dialog.NewEngine(dialog.NewTree(dialog.SeedUniverse(config.GetList("instruments"))), transport)
		handler := telegram.NewHandler(conversations, dispatcher, m, config.GetString("quote_asset"))
		notifier := telegram.NewNotifier(transport, dispatcher, conversations, bot.API, m, telegram.NotifierConfig{
			PollInterval:        config.GetDuration("poll_interval"),
			DescriptionInterval: config.GetDuration("description_interval"),
			Quote:               config.GetString("quote_asset"),
		})
		notifier.Introduce()

		updates, err := bot.GetUpdatesChannel()
		if err != nil {
			log.Fatalf("Failed to get updates channel: %v", err)
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			handleUpdates(ctx, handler, updates)
		}()
		go func() {
			defer wg.Done()
			notifier.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		saveMetricsPeriodically(ctx, m)
	}()

	server := launchMetricsAndHealthServer(config.GetInt("metrics_port"))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
		log.Info("Shutdown signal received")
	case <-ctx.Done():
	}

	cancel()
	if bot != nil {
		bot.Stop()
	}
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Failed to stop metrics server: %v", err)
	}

	if rules != nil {
		if err := rules.Flush(); err != nil {
			log.Errorf("Failed to write final rule snapshot: %v", err)
			exitCode = 1
		}
	}
	m.SaveToDB()
	log.Info("Metrics saved, shutting down...")

	return exitCode
}

func setupLogging() {
	level, err := log.ParseLevel(config.GetString("log_level"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting pair alert bot...")
}

// newTransport connects the queue backend; only the topics of the enabled roles are consumed
func newTransport(runBot, runEvaluator bool) (*queue.Transport, error) {
	topics := queue.Topics{
		Submissions:   config.GetString("topic_submissions"),
		Notifications: config.GetString("topic_notifications"),
		Snapshots:     config.GetString("topic_snapshots"),
	}

	switch backend := config.GetString("transport"); backend {
	case "memory":
		if !runBot || !runEvaluator {
			log.Warn("⚠️ In-memory transport only connects roles running in the same process")
		}
		return queue.NewTransport(queue.NewMemoryBroker(), topics), nil
	case "kafka":
		var consume []string
		if runBot {
			consume = append(consume, topics.Notifications, topics.Snapshots)
		}
		if runEvaluator {
			consume = append(consume, topics.Submissions)
		}

		broker, err := queue.NewKafkaBroker(queue.KafkaConfig{
			Brokers: config.GetList("kafka_brokers"),
			Group:   config.GetString("kafka_group"),
			Consume: consume,
		})
		if err != nil {
			return nil, err
		}
		return queue.NewTransport(broker, topics), nil
	default:
		return nil, errors.Errorf("unknown transport %q", backend)
	}
}

func newSnapshotter() store.Snapshotter {
	if config.GetString("store_backend") == "sqlite" {
		return store.NewSQLiteSnapshotter()
	}
	return store.NewFileSnapshotter(config.GetString("store_path"))
}

func newProvider() (price.Provider, error) {
	instruments := config.GetList("instruments")

	switch source := config.GetString("price_source"); source {
	case "binance":
		client := binance.NewClient(config.GetString("binance_api_key"), config.GetString("binance_api_secret"))
		return price.NewBinanceProvider(client, config.GetString("quote_asset"), instruments), nil
	case "coinpaprika":
		client := price.NewCoinpaprikaClient(config.GetString("api_pro_key"))
		return price.NewCoinpaprikaProvider(client, instruments), nil
	default:
		return nil, errors.Errorf("unknown price source %q", source)
	}
}

func handleUpdates(ctx context.Context, handler *telegram.Handler, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			handleUpdate(ctx, handler, update)
		}
	}
}

func handleUpdate(ctx context.Context, handler *telegram.Handler, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
		}
	}()

	handler.HandleUpdate(ctx, update)
}

func saveMetricsPeriodically(ctx context.Context, m *metrics.Metrics) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SaveToDB()
		}
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthCheckHandler)

	server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		log.Infof("Launching metrics and health endpoint on :%d", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics and health server failed: %v", err)
		}
	}()
	return server
}
