// Package notification delivers alert emails with template rendering, an
// in-memory delivery log, retry, and Echo HTTP handlers for operators.
package notification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/memerye/BME-547-Heart-Rate-Sentinel-Server/pkg/pagination"
)

// Delivery statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusDropped = "dropped"
)

// TemplateTachycardiaAlert is the template used for tachycardic readings.
const TemplateTachycardiaAlert = "tachycardia-alert"

// Notification is a single outbound email and its delivery outcome.
type Notification struct {
	ID           string            `json:"id"`
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject"`
	Body         string            `json:"body"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]string `json:"template_data,omitempty"`
	Status       string            `json:"status"`
	Attempts     int               `json:"attempts"`
	CreatedAt    time.Time         `json:"created_at"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// LogSender writes emails to the log instead of delivering them. It is used
// when no mail provider is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s LogSender) SendEmail(_ context.Context, to, subject, htmlBody string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Str("body", htmlBody).Msg("email not delivered, no provider configured")
	return nil
}

// ---------------------------------------------------------------------------
// Template Engine
// ---------------------------------------------------------------------------

// Template defines a reusable email template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.RegisterTemplate(Template{
		ID:      TemplateTachycardiaAlert,
		Name:    "Tachycardia Alert",
		Subject: "WARNING about tachycardic heart rate",
		Body: "<strong><p>" +
			"Patient ID: {{patient_id}} <br />" +
			"time: {{timestamp}} <br />" +
			"heart rate: {{heart_rate}} <br />" +
			"Exhibits tachycardic!" +
			"</p></strong>",
	})
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are left
// as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Manager sends emails and keeps a bounded log of their outcomes.
type Manager struct {
	sender    EmailSender
	templates *TemplateEngine
	retain    int

	mu            sync.RWMutex
	notifications map[string]*Notification
	order         []string
}

// NewManager constructs a Manager that remembers at most retain notifications.
func NewManager(sender EmailSender, tpl *TemplateEngine, retain int) *Manager {
	if retain <= 0 {
		retain = 1000
	}
	return &Manager{
		sender:        sender,
		templates:     tpl,
		retain:        retain,
		notifications: make(map[string]*Notification),
	}
}

func (m *Manager) store(n *Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[n.ID]; !ok {
		m.order = append(m.order, n.ID)
	}
	m.notifications[n.ID] = n
	for len(m.order) > m.retain {
		delete(m.notifications, m.order[0])
		m.order = m.order[1:]
	}
}

// Send delivers n, assigning an ID and timestamps, and records the result.
func (m *Manager) Send(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = StatusPending

	err := m.deliver(ctx, n)
	m.store(n)
	return err
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	m.mu.Lock()
	n.Attempts++
	m.mu.Unlock()

	err := m.sender.SendEmail(ctx, n.Recipient, n.Subject, n.Body)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return err
	}
	n.Status = StatusSent
	n.Error = ""
	sentAt := time.Now().UTC()
	n.SentAt = &sentAt
	return nil
}

// SendFromTemplate renders a template and sends the resulting email.
func (m *Manager) SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	n, err := m.render(templateID, data, recipient)
	if err != nil {
		return nil, err
	}
	if err := m.Send(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

// RecordDropped logs a notification that was never attempted.
func (m *Manager) RecordDropped(templateID string, data map[string]string, recipient, reason string) {
	n, err := m.render(templateID, data, recipient)
	if err != nil {
		n = &Notification{Recipient: recipient, TemplateID: templateID, TemplateData: data}
	}
	n.ID = uuid.New().String()
	n.CreatedAt = time.Now().UTC()
	n.Status = StatusDropped
	n.Error = reason
	m.store(n)
}

func (m *Manager) render(templateID string, data map[string]string, recipient string) (*Notification, error) {
	subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return &Notification{
		Recipient:    recipient,
		Subject:      subject,
		Body:         body,
		TemplateID:   templateID,
		TemplateData: data,
	}, nil
}

// GetNotification retrieves a notification by ID.
func (m *Manager) GetNotification(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	cp := *n
	return &cp, nil
}

// ListByRecipient returns one page of notifications for recipient, newest
// first, along with the total number held for that recipient.
func (m *Manager) ListByRecipient(_ context.Context, recipient string, limit, offset int) ([]*Notification, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*Notification{}
	total := 0
	for i := len(m.order) - 1; i >= 0; i-- {
		n := m.notifications[m.order[i]]
		if n.Recipient != recipient {
			continue
		}
		if total >= offset && len(result) < limit {
			cp := *n
			result = append(result, &cp)
		}
		total++
	}
	return result, total, nil
}

// Retry re-sends a failed or dropped notification.
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.RLock()
	n, ok := m.notifications[id]
	var status string
	if ok {
		status = n.Status
	}
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	if status != StatusFailed && status != StatusDropped {
		return fmt.Errorf("notification %q is not retryable (current: %s)", id, status)
	}
	return m.deliver(ctx, n)
}

// Stats returns counts of notifications grouped by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]int{StatusSent: 0, StatusFailed: 0, StatusDropped: 0}
	for _, n := range m.notifications {
		stats[n.Status]++
	}
	return stats
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// Handler exposes the delivery log over HTTP via Echo.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications/stats", h.HandleStats)
	g.GET("/notifications/:id", h.HandleGet)
	g.GET("/notifications", h.HandleList)
	g.POST("/notifications/:id/retry", h.HandleRetry)
}

// HandleGet handles GET /notifications/:id.
func (h *Handler) HandleGet(c echo.Context) error {
	n, err := h.manager.GetNotification(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, n)
}

// HandleList handles GET /notifications?recipient=...&limit=&offset=
func (h *Handler) HandleList(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	if recipient == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "recipient query parameter is required"})
	}

	p := pagination.FromContext(c)
	list, total, err := h.manager.ListByRecipient(c.Request().Context(), recipient, p.Limit, p.Offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, p))
}

// HandleRetry handles POST /notifications/:id/retry.
func (h *Handler) HandleRetry(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	n, err := h.manager.GetNotification(ctx, id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	if n.Status != StatusFailed && n.Status != StatusDropped {
		return c.JSON(http.StatusConflict, map[string]string{"error": "notification is not retryable"})
	}

	retryErr := h.manager.Retry(ctx, id)
	n, _ = h.manager.GetNotification(ctx, id)
	if retryErr != nil {
		return c.JSON(http.StatusBadGateway, n)
	}
	return c.JSON(http.StatusOK, n)
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats(c.Request().Context()))
}
