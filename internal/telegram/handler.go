package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pair-alert-bot/internal/commands"
	"pair-alert-bot/internal/dialog"
	"pair-alert-bot/internal/metrics"
	"pair-alert-bot/internal/types"
	"pair-alert-bot/lib/translation"
)

// Handler answers incoming chat messages
type Handler struct {
	dialog     *dialog.Engine
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	quote      string
}

func NewHandler(d *dialog.Engine, dispatcher *Dispatcher, m *metrics.Metrics, quote string) *Handler {
	return &Handler{
		dialog:     d,
		dispatcher: dispatcher,
		metrics:    m,
		quote:      quote,
	}
}

// HandleUpdate processes Telegram updates
func (h *Handler) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	if u.Message == nil {
		log.Debug("Received non-message update")
		return
	}

	msg := u.Message
	user := types.Owner{ID: msg.Chat.ID, Name: DisplayName(msg.Chat)}
	h.metrics.TrackMessage(msg.Chat.ID, msg.Chat.Title)
	log.Debugf("received message from %s: %q", user.Name, msg.Text)

	switch msg.Command() {
	case "start":
		h.send(ctx, user, Message{Body: translation.Translate("Hello, I am a bot for price notifications on Binance")})
		h.sendReply(ctx, user, h.dialog.Start(user))
	case "help":
		universe := h.dialog.Universe()
		h.send(ctx, user, Message{Body: translation.Translate("Hello, I am a bot for price notifications on Binance")})
		h.send(ctx, user, Message{Body: translation.Translate("I can show the current exchange rate of the cryptocurrencies you specify, and I can also notify you if a cryptocurrency pair reaches the desired value")})
		h.send(ctx, user, Message{Body: commands.CommandRates(universe.Prices, h.quote, universe.Updated), ParseMode: tgbotapi.ModeMarkdownV2})
		h.sendReply(ctx, user, h.dialog.Current(user))
	default:
		if msg.Text == "" {
			return
		}
		h.accept(ctx, user, msg.Text)
	}

	h.metrics.CommandsProcessed.Inc()
}

func (h *Handler) accept(ctx context.Context, user types.Owner, text string) {
	reply, err := h.dialog.Accept(ctx, user, text)

	var verr *dialog.ValidationError
	switch {
	case errors.As(err, &verr):
		h.send(ctx, user, Message{Body: verr.Message, Options: verr.Options})
	case err != nil:
		log.WithField("user", user.ID).Errorf("❌ Failed to process message: %v", err)
		h.send(ctx, user, Message{Body: translation.Translate("Something went wrong while saving your notification, please try again")})
	default:
		h.sendReply(ctx, user, reply)
		if reply.Complete {
			h.sendReply(ctx, user, h.dialog.Start(user))
		}
	}
}

func (h *Handler) sendReply(ctx context.Context, user types.Owner, reply dialog.Reply) {
	h.send(ctx, user, Message{
		Body:           reply.Text,
		Options:        reply.Options,
		RemoveKeyboard: reply.RemoveKeyboard || reply.Complete,
	})
}

func (h *Handler) send(ctx context.Context, user types.Owner, m Message) {
	m.ChatID = user.ID
	m.Username = user.Name
	if err := h.dispatcher.Dispatch(ctx, m); err != nil {
		log.Errorf("Failed to send message: %v", err)
	}
}
