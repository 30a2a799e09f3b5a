package telegram

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"pair-alert-bot/internal/commands"
	"pair-alert-bot/internal/dialog"
	"pair-alert-bot/internal/metrics"
	"pair-alert-bot/internal/price"
	"pair-alert-bot/internal/queue"
	"pair-alert-bot/internal/types"
	"pair-alert-bot/lib/translation"
)

// Inbox is the part of queue.Transport the chat side consumes
type Inbox interface {
	FetchNotification(ctx context.Context) (types.Notification, queue.Delivery, bool, error)
	FetchSnapshot(ctx context.Context) (types.Snapshot, queue.Delivery, bool, error)
}

type NotifierConfig struct {
	PollInterval        time.Duration
	DescriptionInterval time.Duration
	Quote               string
}

// Notifier delivers triggered rules and keeps the dialog and the bot
// description in line with the latest market snapshot.
type Notifier struct {
	inbox      Inbox
	dispatcher *Dispatcher
	dialog     *dialog.Engine
	sender     Sender
	metrics    *metrics.Metrics
	config     NotifierConfig

	lastDescription time.Time
}

func NewNotifier(inbox Inbox, dispatcher *Dispatcher, d *dialog.Engine, sender Sender, m *metrics.Metrics, c NotifierConfig) *Notifier {
	return &Notifier{
		inbox:      inbox,
		dispatcher: dispatcher,
		dialog:     d,
		sender:     sender,
		metrics:    m,
		config:     c,
	}
}

// FormatNotification renders the message a user gets when a rule fires
func FormatNotification(n types.Notification) string {
	relation := "less"
	if n.Direction == types.DirectionAbove {
		relation = "greater"
	}

	return translation.Translate("%s, %s has become %s than %s %s and is now %s %s",
		n.Owner.Name,
		n.PairA,
		translation.Translate(relation),
		strconv.FormatFloat(n.Threshold, 'f', -1, 64),
		n.PairB,
		price.FormatRatio(n.Current),
		n.PairB,
	)
}

// Poll handles at most one notification and one snapshot
func (n *Notifier) Poll(ctx context.Context) {
	n.pollNotification(ctx)
	n.pollSnapshot(ctx)
}

// Run polls until ctx is done
func (n *Notifier) Run(ctx context.Context) {
	log.Info("🚀 Notification poller started.")

	ticker := time.NewTicker(n.config.PollInterval)
	defer ticker.Stop()

	for {
		n.Poll(ctx)

		select {
		case <-ctx.Done():
			log.Info("🛑 Notification poller stopped.")
			return
		case <-ticker.C:
		}
	}
}

func (n *Notifier) pollNotification(ctx context.Context) {
	notification, delivery, ok, err := n.inbox.FetchNotification(ctx)
	if err != nil {
		log.Errorf("❌ Failed to fetch notification: %v", err)
		return
	}
	if !ok {
		return
	}

	err = n.dispatcher.Dispatch(ctx, Message{
		ChatID:   notification.Owner.ID,
		Username: notification.Owner.Name,
		Body:     FormatNotification(notification),
	})
	if err != nil {
		log.WithField("user", notification.Owner.ID).Errorf("❌ Notification dropped: %v", err)
	} else {
		n.metrics.NotificationsDispatched.Inc()
		log.WithFields(log.Fields{
			"user": notification.Owner.ID,
			"pair": notification.PairA + "/" + notification.PairB,
		}).Info("✅ Notification sent")
	}

	if err := delivery.Ack(); err != nil {
		log.Errorf("❌ Failed to ack notification: %v", err)
	}
}

// pollSnapshot drains the snapshot topic and applies only the newest
// non-empty snapshot; older ones are superseded.
func (n *Notifier) pollSnapshot(ctx context.Context) {
	var latest types.Snapshot
	drained := 0

	for ctx.Err() == nil {
		snapshot, delivery, ok, err := n.inbox.FetchSnapshot(ctx)
		if err != nil {
			log.Errorf("❌ Failed to fetch market snapshot: %v", err)
			break
		}
		if !ok {
			break
		}
		if err := delivery.Ack(); err != nil {
			log.Errorf("❌ Failed to ack market snapshot: %v", err)
		}

		drained++
		if len(snapshot) == 0 {
			log.Debug("Skipping empty market snapshot")
			continue
		}
		latest = snapshot
	}

	if drained > 1 {
		log.Debugf("Drained %d market snapshots", drained)
	}
	if latest == nil {
		return
	}
	n.dialog.SetUniverse(latest)

	if time.Since(n.lastDescription) >= n.config.DescriptionInterval {
		n.UpdateDescriptions(latest)
		n.lastDescription = time.Now()
	}
}

// Introduce sets the static description shown until the first rates arrive
func (n *Notifier) Introduce() {
	if _, err := n.sender.MakeRequest("setMyShortDescription", tgbotapi.Params{"short_description": commands.CommandDescription()}); err != nil {
		log.Errorf("❌ Failed to set short description: %v", err)
	}
}

// UpdateDescriptions publishes the current rates as the bot description
func (n *Notifier) UpdateDescriptions(snapshot types.Snapshot) {
	short := commands.CommandShortDescription(snapshot, n.config.Quote)
	if _, err := n.sender.MakeRequest("setMyShortDescription", tgbotapi.Params{"short_description": short}); err != nil {
		log.Errorf("❌ Failed to update short description: %v", err)
	}

	long := commands.CommandLongDescription(snapshot, n.config.Quote)
	if _, err := n.sender.MakeRequest("setMyDescription", tgbotapi.Params{"description": long}); err != nil {
		log.Errorf("❌ Failed to update description: %v", err)
	}
	log.Debugf("Bot description updated: %s", short)
}
