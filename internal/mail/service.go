// internal/mail/service.go
package mail

import (
	"context"
	"fmt"

	"github.com/davem/wrenchd/internal/shop"
)

// EmailService provides high-level mail operations. It implements
// shop.OrderMailer.
type EmailService struct {
	mailer Mailer
	config *Config
}

// NewEmailService creates a new EmailService.
func NewEmailService(mailer Mailer, config *Config) *EmailService {
	return &EmailService{mailer: mailer, config: config}
}

// SendOrderReady tells a client their vehicle is ready for pickup.
func (s *EmailService) SendOrderReady(ctx context.Context, client *shop.Client, vehicle *shop.Vehicle, order *shop.ServiceOrder) error {
	return s.sendOrderMail(ctx, TypeOrderReady, client, vehicle, order)
}

// SendOrderDelivered thanks a client after delivery.
func (s *EmailService) SendOrderDelivered(ctx context.Context, client *shop.Client, vehicle *shop.Vehicle, order *shop.ServiceOrder) error {
	return s.sendOrderMail(ctx, TypeOrderDelivered, client, vehicle, order)
}

// SendWelcome greets a newly registered client.
func (s *EmailService) SendWelcome(ctx context.Context, email, name string) error {
	subject, html, text, err := Render(TypeWelcome, TemplateData{
		ClientName: name,
		ShopName:   s.config.ShopName,
	})
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, &Message{
		To:       email,
		From:     s.config.From,
		Subject:  subject,
		BodyHTML: html,
		BodyText: text,
		Type:     TypeWelcome,
	})
}

func (s *EmailService) sendOrderMail(ctx context.Context, templateType string, client *shop.Client, vehicle *shop.Vehicle, order *shop.ServiceOrder) error {
	if client.Email == "" {
		return fmt.Errorf("client %s has no email address", client.ID)
	}

	subject, html, text, err := Render(templateType, TemplateData{
		ClientName: client.Name,
		Vehicle:    fmt.Sprintf("%s %s", vehicle.Make, vehicle.Model),
		Plate:      vehicle.Plate,
		OrderID:    order.ID,
		Total:      order.Total,
		ShopName:   s.config.ShopName,
	})
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", templateType, err)
	}

	return s.mailer.Send(ctx, &Message{
		To:       client.Email,
		From:     s.config.From,
		Subject:  subject,
		BodyHTML: html,
		BodyText: text,
		Type:     templateType,
	})
}
