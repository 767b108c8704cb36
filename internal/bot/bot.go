package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/thatguy/facility-reports/internal/facility"
	"github.com/thatguy/facility-reports/internal/logger"
	"github.com/thatguy/facility-reports/internal/reports"
)

const reportListLimit = 10

const (
	buttonFacilities  = "🏢 מתקנים"
	buttonSubscribe   = "🔔 הרשמה לעדכונים"
	buttonUnsubscribe = "🔕 ביטול הרשמה"
)

var buttonCommands = map[string]string{
	buttonFacilities:  "facilities",
	buttonSubscribe:   "start",
	buttonUnsubscribe: "stop",
}

// Bot wraps Telegram bot operations and stores subscriptions in database.
type Bot struct {
	api     *tgbotapi.BotAPI
	log     *logger.Logger
	storage Storage
	service ReportService
	metrics Metrics
}

type Storage interface {
	AddSubscriber(chatID int64) error
	RemoveSubscriber(chatID int64) error
	GetSubscribers() ([]int64, error)
	IsSubscribed(chatID int64) (bool, error)
}

type ReportService interface {
	Facilities() []facility.Entry
	FacilityName(id string) string
	Dashboard(ctx context.Context, facilityID string) (reports.Dashboard, error)
	SetStatus(ctx context.Context, facilityID string, reportID int64, status string) (reports.Report, error)
	Messages() *reports.Messages
}

type Metrics interface {
	SetSubscribers(count float64)
	RecordUnknownFacility()
	RecordError(errorType string)
}

func New(token string, storage Storage, service ReportService, log *logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		api:     api,
		log:     log,
		storage: storage,
		service: service,
	}

	bot.log.InfoWithFields("Telegram bot initialized", logger.Fields{
		"bot_username": api.Self.UserName,
		"bot_id":       api.Self.ID,
	})

	return bot, nil
}

func (b *Bot) SetMetrics(m Metrics) {
	b.metrics = m
}

func (b *Bot) Run(ctx context.Context) {
	b.log.Info("Starting Telegram bot updates loop")
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 10
	updates := b.api.GetUpdatesChan(u)

	defer func() {
		b.api.StopReceivingUpdates()
		b.log.Info("Telegram bot updates loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("Context canceled, stopping Telegram bot updates loop")
			return
		case upd, ok := <-updates:
			if !ok {
				b.log.Info("Updates channel closed")
				return
			}
			if upd.Message != nil {
				b.handleMessage(ctx, upd.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	fields := logger.Fields{
		"text":    msg.Text,
		"chat_id": chatID,
	}
	if msg.From != nil {
		fields["username"] = msg.From.UserName
	}
	b.log.InfoWithFields("Received message", fields)

	var command, args string
	if msg.IsCommand() {
		command = msg.Command()
		args = msg.CommandArguments()
	} else {
		command = buttonCommands[strings.TrimSpace(msg.Text)]
	}

	text := b.handleCommand(ctx, chatID, command, args)
	b.reply(chatID, text)
}

// handleCommand performs the command and returns the reply text.
func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) string {
	m := b.service.Messages()

	switch command {
	case "start":
		if err := b.storage.AddSubscriber(chatID); err != nil {
			b.log.WithError(err).Error("Failed to add subscriber")
			b.recordError("subscribe")
			return "❌ ההרשמה נכשלה, נסו שוב מאוחר יותר"
		}
		b.log.InfoWithFields("User subscribed", logger.Fields{
			"chat_id":           chatID,
			"total_subscribers": b.refreshSubscriberGauge(),
		})
		return m.Welcome()

	case "stop":
		if err := b.storage.RemoveSubscriber(chatID); err != nil {
			b.log.WithError(err).Error("Failed to remove subscriber")
			b.recordError("unsubscribe")
			return "❌ ביטול ההרשמה נכשל, נסו שוב מאוחר יותר"
		}
		b.log.InfoWithFields("User unsubscribed", logger.Fields{
			"chat_id":           chatID,
			"total_subscribers": b.refreshSubscriberGauge(),
		})
		return m.Goodbye()

	case "facilities":
		return m.FacilityList(b.service.Facilities())

	case "reports":
		id := strings.TrimSpace(args)
		if id == "" {
			return "שימוש: /reports <מספר מתקן>"
		}
		d, err := b.service.Dashboard(ctx, id)
		if err != nil {
			return b.errorReply(err, id)
		}
		return m.ReportList(d.Name, d.Reports, reportListLimit)

	case "status":
		parts := strings.Fields(args)
		if len(parts) != 3 {
			return "שימוש: /status <מספר מתקן> <מספר דיווח> <received|in_progress|done>"
		}
		reportID, err := strconv.ParseInt(strings.TrimPrefix(parts[1], "#"), 10, 64)
		if err != nil {
			return "❌ מספר דיווח לא תקין: " + parts[1]
		}
		r, err := b.service.SetStatus(ctx, parts[0], reportID, parts[2])
		if err != nil {
			return b.errorReply(err, parts[0])
		}
		return fmt.Sprintf("✅ הסטטוס של דיווח #%d עודכן: %s", r.ID, r.Status.Label())

	default:
		return m.Help()
	}
}

func (b *Bot) errorReply(err error, facilityID string) string {
	switch {
	case errors.Is(err, reports.ErrUnknownFacility):
		if b.metrics != nil {
			b.metrics.RecordUnknownFacility()
		}
		return "❌ לא קיים: " + b.service.FacilityName(facilityID)
	case errors.Is(err, reports.ErrReportNotFound):
		return "❌ הדיווח לא נמצא"
	case errors.Is(err, reports.ErrInvalidStatus):
		return "❌ סטטוס לא תקין. אפשרויות: received, in_progress, done"
	default:
		b.log.WithError(err).Error("Command failed")
		b.recordError("command")
		return "❌ שגיאה, נסו שוב מאוחר יותר"
	}
}

func (b *Bot) refreshSubscriberGauge() int {
	n := len(b.Subscribers())
	if b.metrics != nil {
		b.metrics.SetSubscribers(float64(n))
	}
	return n
}

func (b *Bot) recordError(kind string) {
	if b.metrics != nil {
		b.metrics.RecordError(kind)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = b.createMainKeyboard(chatID)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).WithFields(logger.Fields{
			"chat_id": chatID,
		}).Error("Failed to send message")
	}
}

func (b *Bot) Subscribers() []int64 {
	subscribers, err := b.storage.GetSubscribers()
	if err != nil {
		b.log.WithError(err).Error("Failed to get subscribers")
		return []int64{}
	}
	return subscribers
}

// Broadcast sends text to every subscriber and returns the number of successful sends.
func (b *Bot) Broadcast(text string) int {
	delivered := 0
	for _, chatID := range b.Subscribers() {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			b.log.WithError(err).WithField("chat_id", chatID).Error("Failed to send notification")
			b.recordError("notify")
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Bot) createMainKeyboard(chatID int64) tgbotapi.ReplyKeyboardMarkup {
	isSubscribed, err := b.storage.IsSubscribed(chatID)
	if err != nil {
		b.log.WithError(err).Error("Failed to check subscription status")
		isSubscribed = false
	}

	subscriptionText := buttonSubscribe
	if isSubscribed {
		subscriptionText = buttonUnsubscribe
	}

	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonFacilities),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(subscriptionText),
		),
	)
}
