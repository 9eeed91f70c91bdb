package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/wbfreight/dispatch/internal/domain"
	"github.com/wbfreight/dispatch/internal/telegram"
)

// Callback data verbs. The payload after the verb is the session id,
// optionally followed by a numeric argument.
const (
	verbAccept  = "acc"
	verbReject  = "rej"
	verbDriver  = "drv"
	verbTruck   = "trk"
	verbConfirm = "ok"
	verbCancel  = "no"
)

type Telegram interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

type CoreAPI interface {
	ListDrivers(ctx context.Context) ([]domain.Driver, error)
	ListTrucks(ctx context.Context) ([]domain.Truck, error)
	AssignDriver(ctx context.Context, orderID string, driverID, truckID int64) error
	RejectOrder(ctx context.Context, orderID, reason string) error
}

// Bot drives the dispatch wizard: a new order lands in the admin chat
// with accept/reject buttons, accepting walks the dispatcher through
// driver and truck selection, and confirmation calls back into the
// orders service.
type Bot struct {
	tg          Telegram
	api         CoreAPI
	sessions    SessionStore
	adminChatID int64
	logger      *slog.Logger
}

func New(tg Telegram, api CoreAPI, sessions SessionStore, adminChatID int64, logger *slog.Logger) *Bot {
	return &Bot{
		tg:          tg,
		api:         api,
		sessions:    sessions,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// HandleEvent routes an order event to the right chat. Unknown event
// types are logged and dropped.
func (b *Bot) HandleEvent(ctx context.Context, event domain.OrderEvent) error {
	switch event.Type {
	case domain.EventOrderCreated:
		return b.announceOrder(ctx, event)
	case domain.EventDriverAssigned:
		return b.notifyClient(ctx, event.ChatID, telegram.ClientAssignedMessage(event))
	case domain.EventOrderRejected:
		return b.notifyClient(ctx, event.ChatID, telegram.ClientRejectedMessage(event))
	default:
		b.logger.Warn("unknown event type", "type", event.Type, "order_id", event.OrderID)
		return nil
	}
}

// HandleMessage adapts HandleEvent to a raw queue payload.
func (b *Bot) HandleMessage(ctx context.Context, payload []byte) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order event: %w", err)
	}
	return b.HandleEvent(ctx, event)
}

func (b *Bot) announceOrder(ctx context.Context, event domain.OrderEvent) error {
	sessionID := NewSessionID()
	session := Session{
		OrderID:        event.OrderID,
		SequenceNumber: event.SequenceNumber,
		Step:           StepDecide,
	}
	if err := b.sessions.Put(ctx, sessionID, session); err != nil {
		return err
	}

	msg, err := b.tg.SendMessage(ctx, b.adminChatID, telegram.AdminOrderMessage(event), decideKeyboard(sessionID))
	if err != nil {
		return fmt.Errorf("announce order %s: %w", event.OrderID, err)
	}

	session.ChatID = msg.Chat.ID
	session.MessageID = msg.MessageID
	return b.sessions.Put(ctx, sessionID, session)
}

func (b *Bot) notifyClient(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return nil
	}
	if _, err := b.tg.SendMessage(ctx, chatID, text, nil); err != nil {
		return fmt.Errorf("notify client chat %d: %w", chatID, err)
	}
	return nil
}

// HandleUpdate processes one long-poll update. Errors are returned for
// logging only; the poll loop never stops on them.
func (b *Bot) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return b.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message != nil && strings.HasPrefix(update.Message.Text, "/start") {
		_, err := b.tg.SendMessage(ctx, update.Message.Chat.ID,
			"Dispatch bot online. New orders will appear here with accept and reject buttons.", nil)
		return err
	}
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) error {
	verb, sessionID, arg, err := parseCallbackData(cb.Data)
	if err != nil {
		return b.tg.AnswerCallbackQuery(ctx, cb.ID, "Unrecognized action")
	}

	session, err := b.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return b.tg.AnswerCallbackQuery(ctx, cb.ID, "This order is no longer pending")
	}
	if cb.Message != nil {
		session.ChatID = cb.Message.Chat.ID
		session.MessageID = cb.Message.MessageID
	}

	switch verb {
	case verbAccept:
		return b.stepPickDriver(ctx, cb, sessionID, session)
	case verbReject:
		return b.stepReject(ctx, cb, sessionID, session)
	case verbDriver:
		return b.stepPickTruck(ctx, cb, sessionID, session, arg)
	case verbTruck:
		return b.stepConfirm(ctx, cb, sessionID, session, arg)
	case verbConfirm:
		return b.stepAssign(ctx, cb, sessionID, session)
	case verbCancel:
		return b.stepCancel(ctx, cb, sessionID, session)
	default:
		return b.tg.AnswerCallbackQuery(ctx, cb.ID, "Unrecognized action")
	}
}

func (b *Bot) stepPickDriver(ctx context.Context, cb *telegram.CallbackQuery, sessionID string, session *Session) error {
	drivers, err := b.api.ListDrivers(ctx)
	if err != nil {
		return b.answerFailure(ctx, cb, "Could not load drivers", err)
	}
	if len(drivers) == 0 {
		return b.tg.AnswerCallbackQuery(ctx, cb.ID, "No active drivers available")
	}

	session.Step = StepPickDriver
	session.DriverID = 0
	session.TruckID = 0
	if err := b.sessions.Put(ctx, sessionID, *session); err != nil {
		return err
	}

	if err := b.tg.EditMessageReplyMarkup(ctx, session.ChatID, session.MessageID, driverKeyboard(sessionID, drivers)); err != nil {
		return err
	}
	return b.tg.AnswerCallbackQuery(ctx, cb.ID, "Choose a driver")
}

func (b *Bot) stepPickTruck(ctx context.Context, cb *telegram.CallbackQuery, sessionID string, session *Session, arg string) error {
	driverID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return b.tg.AnswerCallbackQuery(ctx, cb.ID, "Unrecognized action")
	}

	trucks, err := b.api.ListTrucks(ctx)
	if err != nil {
		return b.answerFailure(ctx, cb, "Could not load trucks", err)
	}
	if len(trucks) == 0 {
		return b.tg.AnswerCallbackQuery(ctx, cb.ID, "No active trucks available")
	}

	session.Step = StepPickTruck
	session.DriverID = driverID
	if err := b.sessions.Put(ctx, sessionID, *session); err != nil {
		return err
	}

	if err := b.tg.EditMessageReplyMarkup(ctx, session.ChatID, session.MessageID, truckKeyboard(sessionID, trucks)); err != nil {
		return err
	}
	return b.tg.AnswerCallbackQuery(ctx, cb.ID, "Choose a truck")
}

func (b *Bot) stepConfirm(ctx context.Context, cb *telegram.CallbackQuery, sessionID string, session *Session, arg string) error {
	truckID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return b.tg.AnswerCallbackQuery(ctx, cb.ID, "Unrecognized action")
	}

	driverName, truckLabel, err := b.resolveSelection(ctx, session.DriverID, truckID)
	if err != nil {
		return b.answerFailure(ctx, cb, "Could not load the selection", err)
	}

	session.Step = StepConfirm
	session.TruckID = truckID
	if err := b.sessions.Put(ctx, sessionID, *session); err != nil {
		return err
	}

	text := baseText(cb) + fmt.Sprintf("\n\n🚚 Driver: %s\n🚛 Truck: %s\n\nConfirm the assignment?", driverName, truckLabel)
	if err := b.tg.EditMessageText(ctx, session.ChatID, session.MessageID, text, confirmKeyboard(sessionID)); err != nil {
		return err
	}
	return b.tg.AnswerCallbackQuery(ctx, cb.ID, "")
}

func (b *Bot) stepAssign(ctx context.Context, cb *telegram.CallbackQuery, sessionID string, session *Session) error {
	if session.DriverID == 0 || session.TruckID == 0 {
		return b.tg.AnswerCallbackQuery(ctx, cb.ID, "Selection incomplete, start over")
	}

	if err := b.api.AssignDriver(ctx, session.OrderID, session.DriverID, session.TruckID); err != nil {
		return b.answerFailure(ctx, cb, "Assignment failed", err)
	}

	text := baseText(cb) + fmt.Sprintf("\n\n✅ Order #%d accepted", session.SequenceNumber)
	if err := b.tg.EditMessageText(ctx, session.ChatID, session.MessageID, text, nil); err != nil {
		b.logger.Error("failed to finalize message", "order_id", session.OrderID, "error", err)
	}

	if err := b.sessions.Delete(ctx, sessionID); err != nil {
		b.logger.Error("failed to delete session", "session_id", sessionID, "error", err)
	}
	return b.tg.AnswerCallbackQuery(ctx, cb.ID, "Driver assigned")
}

func (b *Bot) stepReject(ctx context.Context, cb *telegram.CallbackQuery, sessionID string, session *Session) error {
	if err := b.api.RejectOrder(ctx, session.OrderID, ""); err != nil {
		return b.answerFailure(ctx, cb, "Rejection failed", err)
	}

	text := baseText(cb) + fmt.Sprintf("\n\n❌ Order #%d rejected", session.SequenceNumber)
	if err := b.tg.EditMessageText(ctx, session.ChatID, session.MessageID, text, nil); err != nil {
		b.logger.Error("failed to finalize message", "order_id", session.OrderID, "error", err)
	}

	if err := b.sessions.Delete(ctx, sessionID); err != nil {
		b.logger.Error("failed to delete session", "session_id", sessionID, "error", err)
	}
	return b.tg.AnswerCallbackQuery(ctx, cb.ID, "Order rejected")
}

func (b *Bot) stepCancel(ctx context.Context, cb *telegram.CallbackQuery, sessionID string, session *Session) error {
	session.Step = StepDecide
	session.DriverID = 0
	session.TruckID = 0
	if err := b.sessions.Put(ctx, sessionID, *session); err != nil {
		return err
	}

	// The confirm step rewrote the message text, so restore the plain
	// order summary by trimming everything after the selection block.
	text := strings.SplitN(baseText(cb), "\n\n🚚 Driver:", 2)[0]
	if err := b.tg.EditMessageText(ctx, session.ChatID, session.MessageID, text, decideKeyboard(sessionID)); err != nil {
		return err
	}
	return b.tg.AnswerCallbackQuery(ctx, cb.ID, "Action cancelled")
}

func (b *Bot) resolveSelection(ctx context.Context, driverID, truckID int64) (string, string, error) {
	drivers, err := b.api.ListDrivers(ctx)
	if err != nil {
		return "", "", err
	}
	trucks, err := b.api.ListTrucks(ctx)
	if err != nil {
		return "", "", err
	}

	driverName := "driver #" + strconv.FormatInt(driverID, 10)
	for _, d := range drivers {
		if d.ID == driverID {
			driverName = d.FullName
			break
		}
	}
	truckLabel := "truck #" + strconv.FormatInt(truckID, 10)
	for _, t := range trucks {
		if t.ID == truckID {
			truckLabel = t.Label()
			break
		}
	}
	return driverName, truckLabel, nil
}

func (b *Bot) answerFailure(ctx context.Context, cb *telegram.CallbackQuery, text string, err error) error {
	b.logger.Error("wizard step failed", "callback_data", cb.Data, "error", err)
	return b.tg.AnswerCallbackQuery(ctx, cb.ID, text)
}

func baseText(cb *telegram.CallbackQuery) string {
	if cb.Message == nil {
		return ""
	}
	return cb.Message.Text
}

func parseCallbackData(data string) (verb, sessionID, arg string, err error) {
	parts := strings.Split(data, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", "", "", fmt.Errorf("malformed callback data %q", data)
	}
	verb, sessionID = parts[0], parts[1]
	if len(parts) == 3 {
		arg = parts[2]
	}
	if sessionID == "" {
		return "", "", "", fmt.Errorf("malformed callback data %q", data)
	}
	return verb, sessionID, arg, nil
}

func decideKeyboard(sessionID string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "✅ Accept", CallbackData: verbAccept + ":" + sessionID},
			{Text: "❌ Reject", CallbackData: verbReject + ":" + sessionID},
		}},
	}
}

func driverKeyboard(sessionID string, drivers []domain.Driver) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(drivers)+1)
	for _, d := range drivers {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         d.FullName,
			CallbackData: verbDriver + ":" + sessionID + ":" + strconv.FormatInt(d.ID, 10),
		}})
	}
	rows = append(rows, cancelRow(sessionID))
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func truckKeyboard(sessionID string, trucks []domain.Truck) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(trucks)+1)
	for _, t := range trucks {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         t.Label(),
			CallbackData: verbTruck + ":" + sessionID + ":" + strconv.FormatInt(t.ID, 10),
		}})
	}
	rows = append(rows, cancelRow(sessionID))
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func confirmKeyboard(sessionID string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "✅ Confirm", CallbackData: verbConfirm + ":" + sessionID},
			{Text: "↩️ Cancel", CallbackData: verbCancel + ":" + sessionID},
		}},
	}
}

func cancelRow(sessionID string) []telegram.InlineKeyboardButton {
	return []telegram.InlineKeyboardButton{{Text: "↩️ Cancel", CallbackData: verbCancel + ":" + sessionID}}
}
