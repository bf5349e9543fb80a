// Package notify turns confirmed order transitions into best-effort outbound
// messages. A send never blocks or rolls back the transition it reports.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"text/template"
	"time"

	"food-order-api/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrDeliveryFailed wraps every transport failure. It is logged, never
// returned to the caller of the transition, never retried.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Kind selects the message template.
type Kind string

const (
	KindAccepted   Kind = "accepted"
	KindPreparing  Kind = "preparing"
	KindReady      Kind = "ready"
	KindCompleted  Kind = "completed"
	KindCancelled  Kind = "cancelled"
	KindETAUpdated Kind = "eta_updated"
)

// KindForEvent maps a transition event to its notification. Customer receipt
// confirmation has none.
func KindForEvent(e models.OrderEvent) (Kind, bool) {
	switch e {
	case models.EventAccept:
		return KindAccepted, true
	case models.EventStartPreparing:
		return KindPreparing, true
	case models.EventMarkReady:
		return KindReady, true
	case models.EventComplete:
		return KindCompleted, true
	case models.EventCancel:
		return KindCancelled, true
	}
	return "", false
}

type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// ContactFor reads the customer contact frozen into the order.
func ContactFor(o models.Order) Contact {
	return Contact{Name: o.ContactName, Phone: o.ContactPhone, Email: o.ContactEmail}
}

// Notice is the input of a dispatch.
type Notice struct {
	Kind    Kind
	Order   models.Order
	Contact Contact
	Reason  string
}

// Message is a rendered notice handed to a transport.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	OrderID   uint      `json:"order_id"`
	Reference string    `json:"reference"`
	To        Contact   `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Transport delivers a rendered message over one channel.
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher renders notices and sends each one exactly once in the
// background.
type Dispatcher struct {
	transport Transport
	logger    *zap.Logger
	timeout   time.Duration
	templates map[Kind]*template.Template
	wg        sync.WaitGroup
}

const DefaultTimeout = 10 * time.Second

func NewDispatcher(transport Transport, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		transport: transport,
		logger:    logger,
		timeout:   timeout,
		templates: mustParseTemplates(),
	}
}

// Render builds the message for a notice without sending it.
func (d *Dispatcher) Render(n Notice) (Message, error) {
	tmpl, ok := d.templates[n.Kind]
	if !ok {
		return Message{}, fmt.Errorf("no template for %q", n.Kind)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, templateData(n)); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", n.Kind, err)
	}
	return Message{
		ID:        uuid.NewString(),
		Kind:      n.Kind,
		OrderID:   n.Order.ID,
		Reference: n.Order.Reference,
		To:        n.Contact,
		Subject:   subjects[n.Kind] + " #" + n.Order.Reference,
		Body:      body.String(),
		CreatedAt: time.Now(),
	}, nil
}

// Dispatch returns immediately. The send runs detached from ctx cancellation
// but bounded by the dispatcher timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notice) {
	msg, err := d.Render(n)
	if err != nil {
		d.logger.Error("notification not rendered",
			zap.Uint("order_id", n.Order.ID), zap.String("kind", string(n.Kind)), zap.Error(err))
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		d.send(sendCtx, msg)
	}()
}

func (d *Dispatcher) send(ctx context.Context, msg Message) {
	fields := []zap.Field{
		zap.String("message_id", msg.ID),
		zap.Uint("order_id", msg.OrderID),
		zap.String("kind", string(msg.Kind)),
		zap.String("transport", d.transport.Name()),
	}
	if err := d.transport.Send(ctx, msg); err != nil {
		d.logger.Warn("notification dropped",
			append(fields, zap.Error(fmt.Errorf("%w: %w", ErrDeliveryFailed, err)))...)
		return
	}
	d.logger.Info("notification sent", fields...)
}

// Wait blocks until in-flight sends finish, for shutdown and tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
