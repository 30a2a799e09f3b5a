package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
}

// Bot telegram interaction client
type Bot struct {
	API    *tgbotapi.BotAPI
	Config BotConfig
}

// Sender is the part of the Telegram API the bot talks through.
// *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// Message an outgoing telegram message.
// Body must hold a string; anything else is rejected by the Dispatcher.
type Message struct {
	ChatID           int64
	Username         string
	Body             interface{}
	Options          []string
	RemoveKeyboard   bool
	ParseMode        string
	ReplyToMessageID int
}
