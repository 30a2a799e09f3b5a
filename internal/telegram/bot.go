package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// NewBot creates new telegram bot
func NewBot(c BotConfig) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	api.Debug = c.Debug

	return &Bot{
		API:    api,
		Config: c,
	}, nil
}

// GetUpdatesChannel gets new updates updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.API.GetUpdatesChan(updatesConfig), nil
}

// Stop stops long polling; the updates channel is closed afterwards
func (b *Bot) Stop() {
	b.API.StopReceivingUpdates()
}

// DisplayName is the name a chat is addressed by
func DisplayName(chat *tgbotapi.Chat) string {
	if chat.UserName != "" {
		return chat.UserName
	}
	if chat.FirstName != "" {
		return chat.FirstName
	}
	return chat.Title
}
