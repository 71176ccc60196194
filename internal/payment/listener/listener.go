package listener

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ncastellanos/inventory-service/internal/apperr"
	"github.com/ncastellanos/inventory-service/internal/payment"
	"github.com/ncastellanos/inventory-service/pkg/broker"
	"github.com/ncastellanos/inventory-service/pkg/logger"
	"go.uber.org/zap"
)

// PaymentListener consumes gateway webhook notifications bridged onto the
// payments topic. Offsets are committed only after a notification is handled
// or classified as unprocessable, so a transient failure leaves the message
// uncommitted and it is redelivered. The coordinator is idempotent, so
// duplicate deliveries are harmless.
type PaymentListener struct {
	consumer *broker.KafkaConsumer
	uc       payment.UseCase
	logger   logger.ZapLogger
}

func NewPaymentListener(consumer *broker.KafkaConsumer, uc payment.UseCase, log logger.ZapLogger) *PaymentListener {
	return &PaymentListener{
		consumer: consumer,
		uc:       uc,
		logger:   log,
	}
}

func (l *PaymentListener) Start(ctx context.Context) {
	l.logger.Info("starting payment notification listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stopping payment notification listener")
			return
		default:
			msg, err := l.consumer.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("failed to fetch payment notification", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}

			if err := l.processMessage(ctx, msg.Value); err != nil {
				// Offset stays uncommitted; the notification comes back
				// after a restart or rebalance.
				time.Sleep(1 * time.Second)
				continue
			}

			if err := l.consumer.CommitMessages(ctx, msg); err != nil {
				l.logger.Error("failed to commit payment notification offset", zap.Error(err))
			}
		}
	}
}

// processMessage returns an error only for failures worth redelivering.
// Malformed payloads and notifications the coordinator rejects outright are
// committed; retrying them can never succeed.
func (l *PaymentListener) processMessage(ctx context.Context, value []byte) error {
	var notification payment.Notification
	if err := json.Unmarshal(value, &notification); err != nil {
		l.logger.Error("failed to unmarshal payment notification", zap.Error(err))
		return nil
	}

	err := l.uc.HandleWebhook(ctx, &notification)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrInvalidStateTransition),
		errors.Is(err, apperr.ErrNotFound):
		l.logger.Error("discarding unprocessable payment notification",
			zap.String("type", notification.Type),
			zap.String("payment_id", notification.Data.ID),
			zap.Error(err),
		)
		return nil
	default:
		l.logger.Error("failed to process payment notification, leaving it for redelivery",
			zap.String("type", notification.Type),
			zap.String("payment_id", notification.Data.ID),
			zap.Error(err),
		)
		return err
	}
}
