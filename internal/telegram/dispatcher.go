package telegram

import (
	"context"
	"time"

	"github.com/davecgh/go-spew/spew"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"pair-alert-bot/internal/metrics"
)

// MaxMessageLength is the Telegram limit for a single text message, in characters
const MaxMessageLength = 4096

const keyboardColumns = 3

var (
	ErrMalformedPayload = errors.New("message body is not text")
	ErrDeliveryFailed   = errors.New("message could not be delivered")
)

type DispatcherConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
	// Rate is the number of messages per second sent across all chats
	Rate float64
}

// Dispatcher delivers messages with bounded retries and global pacing
type Dispatcher struct {
	sender      Sender
	limiter     *rate.Limiter
	maxAttempts int
	retryDelay  time.Duration
	metrics     *metrics.Metrics
}

func NewDispatcher(sender Sender, c DispatcherConfig, m *metrics.Metrics) *Dispatcher {
	limit := rate.Inf
	if c.Rate > 0 {
		limit = rate.Limit(c.Rate)
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}

	return &Dispatcher{
		sender:      sender,
		limiter:     rate.NewLimiter(limit, 1),
		maxAttempts: c.MaxAttempts,
		retryDelay:  c.RetryDelay,
		metrics:     m,
	}
}

// Dispatch sends m, split into several messages when it is too long.
// Every part is retried on its own; ErrDeliveryFailed means a part was dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, m Message) error {
	text, ok := m.Body.(string)
	if !ok {
		log.WithFields(log.Fields{
			"chat_id": m.ChatID,
			"user":    m.Username,
		}).Errorf("❌ Refusing to send a non-text message body:\n%s", spew.Sdump(m.Body))
		return ErrMalformedPayload
	}
	if text == "" {
		return nil
	}

	chunks := SplitText(text, MaxMessageLength)
	if len(chunks) > 1 {
		log.WithFields(log.Fields{
			"chat_id": m.ChatID,
			"user":    m.Username,
			"parts":   len(chunks),
		}).Warn("⚠️ Message is longer than the Telegram limit, splitting it")
	}

	var failed error
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(m.ChatID, chunk)
		msg.ParseMode = m.ParseMode
		msg.DisableWebPagePreview = true
		if i == 0 {
			msg.ReplyToMessageID = m.ReplyToMessageID
		}
		if i == len(chunks)-1 {
			msg.ReplyMarkup = replyMarkup(m)
		}

		if err := d.send(ctx, m, msg); err != nil {
			d.metrics.DeliveryFailures.Inc()
			if !errors.Is(err, ErrDeliveryFailed) {
				return err
			}
			if failed == nil {
				failed = errors.Wrapf(err, "part %d of %d", i+1, len(chunks))
			}
		}
	}
	return failed
}

func (d *Dispatcher) send(ctx context.Context, m Message, msg tgbotapi.MessageConfig) error {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "send cancelled")
		}

		_, err := d.sender.Send(msg)
		if err == nil {
			if attempt > 1 {
				log.Infof("✅ Message to %d delivered after %d attempts", m.ChatID, attempt)
			}
			return nil
		}

		lastErr = err
		log.WithFields(log.Fields{
			"chat_id": m.ChatID,
			"user":    m.Username,
			"attempt": attempt,
			"max":     d.maxAttempts,
		}).Warnf("⚠️ Failed to send message: %v", err)

		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "send cancelled")
		case <-time.After(d.retryDelay):
		}
	}

	log.WithFields(log.Fields{
		"chat_id": m.ChatID,
		"user":    m.Username,
	}).Errorf("❌ Message skipped after %d attempts: %v", d.maxAttempts, lastErr)
	return errors.Wrapf(ErrDeliveryFailed, "after %d attempts: %v", d.maxAttempts, lastErr)
}

// replyMarkup builds the reply keyboard for the options of m
func replyMarkup(m Message) interface{} {
	if len(m.Options) > 0 {
		rows := lo.Map(lo.Chunk(m.Options, keyboardColumns), func(labels []string, _ int) []tgbotapi.KeyboardButton {
			return tgbotapi.NewKeyboardButtonRow(lo.Map(labels, func(label string, _ int) tgbotapi.KeyboardButton {
				return tgbotapi.NewKeyboardButton(label)
			})...)
		})
		return tgbotapi.NewReplyKeyboard(rows...)
	}
	if m.RemoveKeyboard {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	return nil
}

// SplitText cuts text into parts of at most limit characters, preferring
// line breaks, then spaces. The separator a part ends on is dropped.
func SplitText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		window := runes[:limit]
		cut := lastIndex(window, '\n')
		if cut <= 0 {
			cut = lastIndex(window, ' ')
		}

		if cut <= 0 {
			parts = append(parts, string(window))
			runes = runes[limit:]
			continue
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut+1:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
