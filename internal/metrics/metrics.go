package metrics

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"

	"pair-alert-bot/internal/database"
)

const namespace = "pair_alert"

// Metrics groups the collectors of the bot and the evaluator
type Metrics struct {
	CommandsProcessed  prometheus.Counter
	MessagesHandled    prometheus.Counter
	ChannelsCount      prometheus.Gauge
	ChannelNames       *prometheus.CounterVec
	MessagesPerChannel *prometheus.CounterVec

	NotificationsDispatched prometheus.Counter
	DeliveryFailures        prometheus.Counter

	Ticks          prometheus.Counter
	TickFailures   prometheus.Counter
	RulesPending   prometheus.Gauge
	BucketsSkipped prometheus.Counter
	RulesTriggered *prometheus.CounterVec

	ChannelsSet map[int64]string
	Mutex       sync.Mutex
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram_bot",
			Name:      "commands_processed",
			Help:      "The total number of processed commands",
		}),
		MessagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram_bot",
			Name:      "messages_handled",
			Help:      "The total number of handled messages",
		}),
		ChannelsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telegram_bot",
			Name:      "channels_count",
			Help:      "The current number of unique channels the bot is operating in",
		}),
		ChannelNames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "telegram_bot",
				Name:      "channel_names",
				Help:      "Tracks channels the bot has interacted with",
			},
			[]string{"chat_id", "chat_name"},
		),
		MessagesPerChannel: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "telegram_bot",
				Name:      "messages_per_channel",
				Help:      "The total number of messages handled per channel",
			},
			[]string{"chat_id", "chat_name"},
		),
		NotificationsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram_bot",
			Name:      "notifications_dispatched",
			Help:      "The total number of notifications delivered to users",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram_bot",
			Name:      "delivery_failures",
			Help:      "Messages dropped after exhausting every send attempt",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "ticks",
			Help:      "The total number of evaluation ticks",
		}),
		TickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "tick_failures",
			Help:      "Ticks that failed to persist the rule store",
		}),
		RulesPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "rules_pending",
			Help:      "The number of rules waiting for their condition",
		}),
		BucketsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "buckets_skipped",
			Help:      "Buckets skipped because the snapshot lacked usable prices",
		}),
		RulesTriggered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "rules_triggered",
				Help:      "Rules whose condition was met, per pair",
			},
			[]string{"pair"},
		),
		ChannelsSet: make(map[int64]string),
	}

	reg.MustRegister(
		m.CommandsProcessed,
		m.MessagesHandled,
		m.ChannelsCount,
		m.ChannelNames,
		m.MessagesPerChannel,
		m.NotificationsDispatched,
		m.DeliveryFailures,
		m.Ticks,
		m.TickFailures,
		m.RulesPending,
		m.BucketsSkipped,
		m.RulesTriggered,
	)
	return m
}

// TrackMessage counts an incoming message for its chat
func (m *Metrics) TrackMessage(chatID int64, chatName string) {
	m.MessagesHandled.Inc()
	if chatName == "" {
		chatName = fmt.Sprintf("%s-%d", "PrivateChat", chatID)
	}

	m.updateChannelsSet(chatID, chatName)
	m.MessagesPerChannel.WithLabelValues(strconv.FormatInt(chatID, 10), chatName).Inc()
}

func (m *Metrics) updateChannelsSet(chatID int64, chatName string) {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	if _, exists := m.ChannelsSet[chatID]; !exists {
		m.ChannelsSet[chatID] = chatName
		m.ChannelsCount.Set(float64(len(m.ChannelsSet)))

		m.ChannelNames.WithLabelValues(strconv.FormatInt(chatID, 10), chatName).Inc()
	}
}

// LoadFromDB restores counters persisted by SaveToDB
func (m *Metrics) LoadFromDB() {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	for name, counter := range m.plainCounters() {
		value, err := database.GetMetric(name)
		if err != nil {
			log.Errorf("Failed to load metric %s: %v", name, err)
			continue
		}
		counter.Add(value)
	}

	loadLabeledMetrics("channel_names", func(chatIDStr, chatName string, _ float64) {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			log.Errorf("Failed to parse chatID %s: %v", chatIDStr, err)
			return
		}
		m.ChannelNames.WithLabelValues(chatIDStr, chatName).Add(1)
		m.ChannelsSet[chatID] = chatName
	})
	m.ChannelsCount.Set(float64(len(m.ChannelsSet)))

	loadLabeledMetrics("messages_per_channel", func(chatID, chatName string, value float64) {
		m.MessagesPerChannel.WithLabelValues(chatID, chatName).Add(value)
	})

	log.Info("Metrics loaded from database.")
}

func loadLabeledMetrics(metricName string, callback func(labelKey, labelValue string, value float64)) {
	metricsWithLabels, err := database.GetMetricsWithLabels(metricName)
	if err != nil {
		log.Errorf("Failed to load metric %s: %v", metricName, err)
		return
	}
	for labelKey, labelValues := range metricsWithLabels {
		for labelValue, value := range labelValues {
			callback(labelKey, labelValue, value)
		}
	}
}

// SaveToDB persists counters so they survive restarts
func (m *Metrics) SaveToDB() {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	for name, counter := range m.plainCounters() {
		if err := database.SaveMetric(name, GetMetricValue(counter)); err != nil {
			log.Error(err)
		}
	}

	for chatID, chatName := range m.ChannelsSet {
		if err := database.SaveMetricWithLabels("channel_names", strconv.FormatInt(chatID, 10), chatName, float64(chatID)); err != nil {
			log.Error(err)
		}
	}

	metricChan := make(chan prometheus.Metric, 1)
	go func() {
		m.MessagesPerChannel.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Errorf("Failed to read MessagesPerChannel metric: %v", err)
			continue
		}
		var chatID, chatName string
		for _, label := range metricProto.Label {
			if label.GetName() == "chat_id" {
				chatID = label.GetValue()
			}
			if label.GetName() == "chat_name" {
				chatName = label.GetValue()
			}
		}
		if err := database.SaveMetricWithLabels("messages_per_channel", chatID, chatName, metricProto.Counter.GetValue()); err != nil {
			log.Error(err)
		}
	}

	log.Info("Metrics saved to database.")
}

func (m *Metrics) plainCounters() map[string]prometheus.Counter {
	return map[string]prometheus.Counter{
		"commands_processed":       m.CommandsProcessed,
		"messages_handled":         m.MessagesHandled,
		"notifications_dispatched": m.NotificationsDispatched,
		"delivery_failures":        m.DeliveryFailures,
		"ticks":                    m.Ticks,
		"tick_failures":            m.TickFailures,
		"buckets_skipped":          m.BucketsSkipped,
	}
}

// GetMetricValue reads the current value of a single counter or gauge
func GetMetricValue(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Errorf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		return metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		return metricProto.Gauge.GetValue()
	}
	return 0
}
