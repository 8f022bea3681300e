// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/mpnode/internal/events"
	"github.com/javajoker/mpnode/internal/models"
)

// NotificationService is a secondary listener that tells the operator about
// entities that became visible.
type NotificationService struct {
	templates map[events.Kind]*template.Template
	out       logrus.FieldLogger
}

var notificationTemplates = map[events.Kind]string{
	events.ListingItemStored: `New listing "{{.Title}}" ({{.Hash}}) from {{.Seller}}`,
	events.OrderCreated:      `Order {{.Hash}} created: {{.Buyer}} buys from {{.Seller}}, {{.Items}} item(s) awaiting escrow`,
}

type listingNotice struct {
	Title  string
	Hash   string
	Seller string
}

type orderNotice struct {
	Hash   string
	Buyer  string
	Seller string
	Items  int
}

func NewNotificationService(out logrus.FieldLogger) *NotificationService {
	if out == nil {
		out = logrus.StandardLogger()
	}
	s := &NotificationService{
		templates: make(map[events.Kind]*template.Template, len(notificationTemplates)),
		out:       out,
	}
	for kind, text := range notificationTemplates {
		s.templates[kind] = template.Must(template.New(string(kind)).Parse(text))
	}
	return s
}

func (s *NotificationService) Register(bus Subscriber) {
	bus.Subscribe(events.ListingItemStored, s.Notify)
	bus.Subscribe(events.OrderCreated, s.Notify)
}

func (s *NotificationService) Notify(_ context.Context, e events.Event) error {
	line, err := s.Render(e)
	if err != nil {
		return err
	}
	s.out.WithField("kind", e.Kind).Info(line)
	return nil
}

// Render builds the notification line for e.
func (s *NotificationService) Render(e events.Event) (string, error) {
	tmpl, ok := s.templates[e.Kind]
	if !ok {
		return "", fmt.Errorf("no notification template for %s", e.Kind)
	}

	var data interface{}
	switch p := e.Payload.(type) {
	case *models.ListingItem:
		notice := listingNotice{Hash: p.Hash, Seller: p.Seller}
		if p.ItemInformation != nil {
			notice.Title = p.ItemInformation.Title
		}
		data = notice
	case *models.Order:
		data = orderNotice{Hash: p.Hash, Buyer: p.Buyer, Seller: p.Seller, Items: len(p.OrderItems)}
	default:
		return "", fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render notification: %w", err)
	}
	return buf.String(), nil
}
