package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Notification is a single member-facing message, typically delivered as
// an SMS through a gateway. Delivery is best effort and always off the
// ledger write path.
type Notification struct {
	ID       uuid.UUID
	GroupID  uuid.UUID
	MemberID *uuid.UUID
	Kind     string
	Message  string
	SentAt   time.Time
}

// Notifier delivers notifications to members
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}

// LogNotifier writes notifications to the structured log. It stands in
// for an SMS gateway in environments without one and doubles as a
// delivery audit trail.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by the application log
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the notification
func (n *LogNotifier) Send(ctx context.Context, notification *Notification) error {
	fields := []zap.Field{
		zap.String("notification_id", notification.ID.String()),
		zap.String("group_id", notification.GroupID.String()),
		zap.String("kind", notification.Kind),
		zap.String("message", notification.Message),
	}
	if notification.MemberID != nil {
		fields = append(fields, zap.String("member_id", notification.MemberID.String()))
	}
	n.logger.Info("notification sent", fields...)
	return nil
}

// Ensure LogNotifier implements Notifier
var _ Notifier = (*LogNotifier)(nil)

// amountPrinter formats amounts with digit grouping for member-facing
// messages. VSLA statements are conventionally in English.
var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a decimal amount string with its currency code,
// e.g. "UGX 12,500.50". Falls back to the raw string when the amount
// does not parse.
func FormatAmount(currencyCode, amount string) string {
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return currencyCode + " " + amount
	}
	return currencyCode + " " + amountPrinter.Sprint(number.Decimal(value, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
