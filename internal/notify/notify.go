package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"waterwatch/internal/config"
	"waterwatch/internal/domain"
	"waterwatch/internal/templatefmt"
)

// ErrPermissionDenied marks transport refusal due to missing permission or authorization.
var ErrPermissionDenied = errors.New("notification permission denied")

// Transport displays and cancels one notification slot per id.
// Params: context and notification payload or id.
// Returns: transport error; ErrPermissionDenied when delivery is not authorized.
type Transport interface {
	Name() string
	Display(ctx context.Context, notification domain.Notification) error
	Cancel(ctx context.Context, id string) error
}

// Multi fans one notification out to every configured transport.
// Params: transport list in configuration order.
// Returns: joined error from failed transports.
type Multi struct {
	transports []Transport
}

// NewMulti wraps transports into one fan-out transport.
func NewMulti(transports ...Transport) *Multi {
	return &Multi{transports: transports}
}

// New builds fan-out transport from enabled channels.
// Params: notify config and logger.
// Returns: Multi with log transport plus enabled Telegram/webhook transports.
func New(cfg config.NotifyConfig, logger *slog.Logger) (*Multi, error) {
	transports := []Transport{NewLogTransport(logger)}
	if cfg.Telegram.Enabled {
		telegram, err := NewTelegramTransport(cfg.Telegram)
		if err != nil {
			return nil, err
		}
		transports = append(transports, telegram)
	}
	if cfg.Webhook.Enabled {
		transports = append(transports, NewWebhookTransport(cfg.Webhook))
	}
	return NewMulti(transports...), nil
}

// Name returns comma-joined transport names.
func (m *Multi) Name() string {
	names := make([]string, 0, len(m.transports))
	for _, transport := range m.transports {
		names = append(names, transport.Name())
	}
	return strings.Join(names, ",")
}

// Names returns transport names in order.
func (m *Multi) Names() []string {
	names := make([]string, 0, len(m.transports))
	for _, transport := range m.transports {
		names = append(names, transport.Name())
	}
	return names
}

// Transports returns member transports in configuration order.
func (m *Multi) Transports() []Transport {
	return append([]Transport(nil), m.transports...)
}

// Split expands a fan-out transport into its members.
// Params: any transport (nil allowed).
// Returns: Multi members, the transport itself, or nil.
func Split(transport Transport) []Transport {
	switch t := transport.(type) {
	case nil:
		return nil
	case *Multi:
		return t.Transports()
	default:
		return []Transport{t}
	}
}

// Display sends notification to every transport.
// Params: context and notification payload.
// Returns: joined per-transport errors; one failure does not skip the rest.
func (m *Multi) Display(ctx context.Context, notification domain.Notification) error {
	var errs []error
	for _, transport := range m.transports {
		if err := transport.Display(ctx, notification); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", transport.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Cancel removes notification from every transport.
// Params: context and notification id.
// Returns: joined per-transport errors.
func (m *Multi) Cancel(ctx context.Context, id string) error {
	var errs []error
	for _, transport := range m.transports {
		if err := transport.Cancel(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", transport.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// IsPermissionDenied reports whether err carries ErrPermissionDenied.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// renderMessage executes notification template.
// Params: compiled template and notification.
// Returns: rendered message body.
func renderMessage(tmpl *template.Template, notification domain.Notification) (string, error) {
	var rendered strings.Builder
	if err := tmpl.Execute(&rendered, notification); err != nil {
		return "", fmt.Errorf("render notify template: %w", err)
	}
	return rendered.String(), nil
}

// parseTemplate compiles one text/template expression for notifications.
// Params: template name and body.
// Returns: compiled template or parse error.
func parseTemplate(name, body string) (*template.Template, error) {
	return templatefmt.ParseNotificationTemplate(name, body)
}
