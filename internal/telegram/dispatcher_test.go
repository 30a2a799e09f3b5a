package telegram

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pair-alert-bot/internal/metrics"
)

func newDispatcher(sender Sender, attempts int) *Dispatcher {
	return NewDispatcher(sender, DispatcherConfig{MaxAttempts: attempts}, metrics.New(prometheus.NewRegistry()))
}

func TestDispatcher_RetriesUntilDelivered(t *testing.T) {
	sender := newFakeSender(3)
	d := newDispatcher(sender, 10)

	require.NoError(t, d.Dispatch(context.Background(), Message{ChatID: 1, Body: "hello"}))
	assert.Equal(t, 4, sender.attempts)
	assert.Equal(t, []string{"hello"}, sender.texts())
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	sender := newFakeSender(100)
	d := newDispatcher(sender, 10)

	err := d.Dispatch(context.Background(), Message{ChatID: 1, Body: "hello"})
	assert.True(t, errors.Is(err, ErrDeliveryFailed))
	assert.Equal(t, 10, sender.attempts)
	assert.Equal(t, 1.0, metrics.GetMetricValue(d.metrics.DeliveryFailures))
}

func TestDispatcher_RejectsNonText(t *testing.T) {
	sender := newFakeSender(0)
	d := newDispatcher(sender, 10)

	err := d.Dispatch(context.Background(), Message{ChatID: 1, Body: map[string]int{"a": 1}})
	assert.Equal(t, ErrMalformedPayload, err)
	assert.Zero(t, sender.attempts)
}

func TestDispatcher_SplitsLongMessages(t *testing.T) {
	sender := newFakeSender(0)
	d := newDispatcher(sender, 1)
	line := strings.Repeat("x", 99) + "\n"

	require.NoError(t, d.Dispatch(context.Background(), Message{ChatID: 1, Body: strings.Repeat(line, 100), Options: []string{"a"}}))

	texts := sender.texts()
	require.Len(t, texts, 3)
	for _, text := range texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(text), MaxMessageLength)
	}
	assert.Nil(t, sender.sent[0].ReplyMarkup)
	assert.NotNil(t, sender.sent[2].ReplyMarkup)
}

func TestDispatcher_Keyboards(t *testing.T) {
	sender := newFakeSender(0)
	d := newDispatcher(sender, 1)

	require.NoError(t, d.Dispatch(context.Background(), Message{ChatID: 1, Body: "pick", Options: []string{"BTC", "ETH", "SOL", "USDC"}}))
	require.NoError(t, d.Dispatch(context.Background(), Message{ChatID: 1, Body: "type", RemoveKeyboard: true}))

	keyboard, ok := sender.sent[0].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.Keyboard, 2)
	assert.Len(t, keyboard.Keyboard[0], 3)
	assert.Equal(t, "USDC", keyboard.Keyboard[1][0].Text)

	_, ok = sender.sent[1].ReplyMarkup.(tgbotapi.ReplyKeyboardRemove)
	assert.True(t, ok)
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitText("short", 10))
	assert.Equal(t, []string{"aaaa", "bbbb"}, SplitText("aaaa\nbbbb", 6))
	assert.Equal(t, []string{"aa bb", "cc"}, SplitText("aa bb cc", 6))
	assert.Equal(t, []string{"abcde", "fgh"}, SplitText("abcdefgh", 5))
	assert.Equal(t, []string{"ééé", "ééé"}, SplitText("ééé ééé", 4))
}

func TestDispatcher_SendsRemainingPartsAfterFailedPart(t *testing.T) {
	sender := newFakeSender(2)
	d := newDispatcher(sender, 2)
	body := strings.Repeat("a", 4000) + "\n" + strings.Repeat("b", 4000)

	err := d.Dispatch(context.Background(), Message{ChatID: 1, Body: body})
	assert.True(t, errors.Is(err, ErrDeliveryFailed))
	assert.Equal(t, 3, sender.attempts)
	assert.Equal(t, []string{strings.Repeat("b", 4000)}, sender.texts())
	assert.Equal(t, 1.0, metrics.GetMetricValue(d.metrics.DeliveryFailures))
}
