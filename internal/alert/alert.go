package alert

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pair-alert-bot/internal/metrics"
	"pair-alert-bot/internal/price"
	"pair-alert-bot/internal/queue"
	"pair-alert-bot/internal/store"
	"pair-alert-bot/internal/types"
)

// SnapshotSource yields the market snapshot of a tick; an empty snapshot means the fetch failed
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) types.Snapshot
}

// Transport is the part of queue.Transport the evaluator uses
type Transport interface {
	FetchSubmission(ctx context.Context) (types.Submission, queue.Delivery, bool, error)
	PublishNotification(ctx context.Context, n types.Notification) error
	PublishSnapshot(ctx context.Context, s types.Snapshot) error
}

type Config struct {
	TickInterval time.Duration
	// MaxStoreFailures consecutive failed ticks stop Run; zero retries forever
	MaxStoreFailures int
}

// Engine stores submitted rules and fires them against market snapshots
type Engine struct {
	source    SnapshotSource
	store     *store.Store
	transport Transport
	metrics   *metrics.Metrics
	config    Config
}

func NewEngine(source SnapshotSource, s *store.Store, transport Transport, m *metrics.Metrics, c Config) *Engine {
	return &Engine{
		source:    source,
		store:     s,
		transport: transport,
		metrics:   m,
		config:    c,
	}
}

// Satisfied reports whether value meets the rule; unresolved rules never fire
func Satisfied(rule types.Rule, value float64) bool {
	switch rule.Direction {
	case types.DirectionAbove:
		return value > rule.Threshold
	case types.DirectionBelow:
		return value <= rule.Threshold
	}
	return false
}

// ResolveDirection fixes a "crosses" rule on first sight of a value:
// a threshold above the current value waits for the price to rise.
func ResolveDirection(threshold, value float64) types.Direction {
	return types.DirectionOf(threshold > value)
}

// Drain moves at most one submission into the store. The message is acked
// only after the rule was persisted, otherwise it is handed back to the queue.
func (e *Engine) Drain(ctx context.Context) (bool, error) {
	submission, delivery, ok, err := e.transport.FetchSubmission(ctx)
	if err != nil {
		return false, errors.Wrap(err, "could not fetch submission")
	}
	if !ok {
		return false, nil
	}

	if err := e.store.Add(submission.Pair(), submission.Rule()); err != nil {
		if nerr := delivery.Nack(); nerr != nil {
			log.Errorf("❌ Failed to nack submission: %v", nerr)
		}
		return false, errors.Wrap(err, "could not store rule")
	}
	if err := delivery.Ack(); err != nil {
		log.Errorf("❌ Failed to ack submission: %v", err)
	}

	log.WithFields(log.Fields{
		"user":      submission.Owner.ID,
		"pair":      submission.Pair().String(),
		"threshold": submission.Threshold,
		"direction": submission.Direction,
	}).Info("📥 Rule stored")
	e.metrics.RulesPending.Set(float64(e.store.Len()))
	return true, nil
}

// Tick fetches a snapshot, broadcasts it and evaluates every bucket.
// It fails only when the store could not be persisted.
func (e *Engine) Tick(ctx context.Context) error {
	e.metrics.Ticks.Inc()

	snapshot := e.source.FetchSnapshot(ctx)
	if err := e.transport.PublishSnapshot(ctx, snapshot); err != nil {
		log.Errorf("❌ Failed to broadcast market snapshot: %v", err)
	}

	for _, pair := range e.store.Keys() {
		if err := e.evaluate(ctx, pair, snapshot); err != nil {
			return err
		}
	}

	e.metrics.RulesPending.Set(float64(e.store.Len()))
	return nil
}

func (e *Engine) evaluate(ctx context.Context, pair types.Pair, snapshot types.Snapshot) error {
	value, err := price.Ratio(snapshot, pair.A, pair.B)
	if err != nil {
		log.WithField("pair", pair.String()).Debugf("⚠️ Skipping bucket: %v", err)
		e.metrics.BucketsSkipped.Inc()
		return nil
	}

	// index tracks the position of rule in the live bucket as satisfied rules are removed
	index := 0
	for _, rule := range e.store.Rules(pair) {
		if rule.Direction == types.DirectionUnresolved {
			rule.Direction = ResolveDirection(rule.Threshold, value)
			if err := e.store.Resolve(pair, index, rule.Direction); err != nil {
				return errors.Wrapf(err, "could not resolve rule of %s", pair)
			}
			log.WithFields(log.Fields{
				"pair":      pair.String(),
				"threshold": rule.Threshold,
				"value":     value,
			}).Debugf("🔍 Crossing rule resolved to %s", rule.Direction)
		}

		if !Satisfied(rule, value) {
			index++
			continue
		}

		notification := types.Notification{
			Owner:     rule.Owner,
			PairA:     pair.A,
			PairB:     pair.B,
			Direction: rule.Direction,
			Threshold: rule.Threshold,
			Current:   value,
		}
		if err := e.transport.PublishNotification(ctx, notification); err != nil {
			log.Errorf("❌ Failed to publish notification for %s, keeping the rule: %v", pair, err)
			index++
			continue
		}

		if err := e.store.RemoveAt(pair, index); err != nil {
			return errors.Wrapf(err, "could not remove fired rule of %s", pair)
		}
		e.metrics.RulesTriggered.WithLabelValues(pair.String()).Inc()
		log.WithFields(log.Fields{
			"user":      rule.Owner.ID,
			"pair":      pair.String(),
			"threshold": rule.Threshold,
			"value":     value,
		}).Info("🚨 Rule triggered")
	}
	return nil
}

// Run alternates Drain and Tick until ctx is done. It returns an error once
// MaxStoreFailures ticks in a row could not persist the store.
func (e *Engine) Run(ctx context.Context) error {
	log.Info("🚀 Condition engine started.")

	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	failures := 0
	for {
		if _, err := e.Drain(ctx); err != nil {
			log.Errorf("❌ %v", err)
		}

		if err := e.Tick(ctx); err != nil {
			failures++
			e.metrics.TickFailures.Inc()
			log.WithField("consecutive", failures).Errorf("❌ Tick failed: %v", err)

			if e.config.MaxStoreFailures > 0 && failures >= e.config.MaxStoreFailures {
				return errors.Wrapf(err, "rule store failed %d ticks in a row", failures)
			}
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			log.Info("🛑 Condition engine stopped.")
			return nil
		case <-ticker.C:
		}
	}
}
