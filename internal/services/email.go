package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gymcheckin/internal/domain"
)

type capacityMailNotifier struct {
	mailer     domain.Mailer
	renderer   domain.EmailTemplateRenderer
	recipients []string
	logger     *slog.Logger
}

// NewCapacityMailNotifier returns a CapacityNotifier that emails recipients
// using the "capacity_alert" template. With no recipients it does nothing.
func NewCapacityMailNotifier(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, recipients []string, logger *slog.Logger) domain.CapacityNotifier {
	return &capacityMailNotifier{mailer: mailer, renderer: renderer, recipients: recipients, logger: logger}
}

// NotifyCapacity renders and sends the capacity alert to every recipient.
func (n *capacityMailNotifier) NotifyCapacity(ctx context.Context, alert domain.CapacityAlert) error {
	if len(n.recipients) == 0 {
		return nil
	}
	data := domain.CapacityAlertEmailData{
		FacilityID: alert.FacilityID,
		Count:      alert.Utilization.Count,
		Limit:      alert.Utilization.Limit,
		Percent:    int(math.Round(alert.Utilization.Pct * 100)),
		Status:     string(alert.Utilization.Status),
		Previous:   string(alert.Previous),
	}
	subject, htmlBody, textBody, err := n.renderer.Render("capacity_alert", data)
	if err != nil {
		return fmt.Errorf("failed to render capacity_alert template: %w", err)
	}
	for _, to := range n.recipients {
		if err := n.mailer.Send(to, subject, htmlBody, textBody); err != nil {
			return fmt.Errorf("failed to send capacity alert: %w", err)
		}
	}
	n.logger.InfoContext(ctx, "capacity alert sent",
		"facility", alert.FacilityID,
		"status", alert.Utilization.Status,
		"recipients", len(n.recipients),
	)
	return nil
}
