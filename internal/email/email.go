package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/Domenick1991/airsettle/internal/kafka"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender turns settlement events into customer notifications. Delivery is a
// structured log line until a mail provider is configured.
type Sender struct {
	log *zap.Logger
}

func NewSender(log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{log: log}
}

func (s *Sender) Send(ctx context.Context, event kafka.SettlementEvent) error {
	msg, ok := Compose(event)
	if !ok {
		s.log.Debug("no notification for event", zap.String("type", event.Type), zap.String("invoice_id", event.InvoiceID))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("send email",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("invoice_id", event.InvoiceID),
	)
	return nil
}

// Compose builds the customer message for event. Events without a
// recipient, and operational events, produce none.
func Compose(event kafka.SettlementEvent) (Message, bool) {
	if event.Email == "" {
		return Message{}, false
	}
	name := strings.TrimSpace(event.FirstName + " " + event.LastName)
	if name == "" {
		name = "traveler"
	}

	switch event.Type {
	case kafka.EventSettlementConfirmed:
		return Message{
			To:      event.Email,
			Subject: "Your flight booking is confirmed",
			Body: fmt.Sprintf("Dear %s,\n\nYour payment for invoice %s was received and your booking %s is confirmed.\n",
				name, event.InvoiceID, event.OrderID),
		}, true
	case kafka.EventSettlementFailed:
		return Message{
			To:      event.Email,
			Subject: "We could not complete your flight booking",
			Body: fmt.Sprintf("Dear %s,\n\nWe could not confirm the booking for invoice %s. No charge will be made: we are releasing the amount held on your card, and your bank may take a few days to show it as available again.\n",
				name, event.InvoiceID),
		}, true
	default:
		return Message{}, false
	}
}
