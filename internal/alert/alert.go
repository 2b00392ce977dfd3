package alert

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/tow-dispatch/internal/models"
)

// LogNotifier stands in for the device ringtone and vibrator.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func (n LogNotifier) PlayAlert(ctx context.Context, o models.Offer) error {
	n.logger().InfoContext(ctx, "tow request alert", "offer_id", o.ID, "pickup", o.PickupAddress)
	return nil
}

func (n LogNotifier) StopAlert(ctx context.Context, offerID string) error {
	n.logger().InfoContext(ctx, "tow request alert stopped", "offer_id", offerID)
	return nil
}

type notifier interface {
	PlayAlert(ctx context.Context, o models.Offer) error
	StopAlert(ctx context.Context, offerID string) error
}

// Multi calls every notifier and joins their errors.
type Multi []notifier

func (m Multi) PlayAlert(ctx context.Context, o models.Offer) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.PlayAlert(ctx, o))
	}
	return errors.Join(errs...)
}

func (m Multi) StopAlert(ctx context.Context, offerID string) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.StopAlert(ctx, offerID))
	}
	return errors.Join(errs...)
}
