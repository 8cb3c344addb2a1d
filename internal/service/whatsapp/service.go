package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lomonchiapp/gallinapp-user-sub000/internal/config"
	client "github.com/lomonchiapp/gallinapp-user-sub000/pkg/clients/whatsapp"
)

const sendTimeout = 10 * time.Second

// ErrNoRecipient is returned when no report recipient is configured.
var ErrNoRecipient = errors.New("whatsapp report recipient not configured")

// Notifier delivers stock reports over the WhatsApp Cloud API.
type Notifier struct {
	client    client.Client
	recipient string
	logger    *zap.Logger
}

// NewNotifier wires a notifier sending to cfg.ReportRecipient.
func NewNotifier(cfg config.WhatsAppConfig, c client.Client, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		client:    c,
		recipient: cfg.ReportRecipient,
		logger:    logger,
	}
}

// SendReport sends text to the configured recipient.
func (n *Notifier) SendReport(ctx context.Context, text string) error {
	if n.recipient == "" {
		return ErrNoRecipient
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	resp, err := n.client.SendTextMessage(ctxWithTimeout, client.SendTextMessageRequest{
		To:   n.recipient,
		Body: text,
	})
	if err != nil {
		return fmt.Errorf("send report to %s: %w", n.recipient, err)
	}

	messageID := ""
	if len(resp.Messages) > 0 {
		messageID = resp.Messages[0].ID
	}
	n.logger.Info("report delivered", zap.String("to", n.recipient), zap.String("message_id", messageID))
	return nil
}
