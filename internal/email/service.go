package email

import (
	"context"
	"errors"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/care-portal/pkg/circuitbreaker"
)

// ErrDisabled is returned by the no-op service.
var ErrDisabled = errors.New("email delivery is disabled")

type Service interface {
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// Dialer is the part of gomail.Dialer the SMTP service uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer Dialer
	from   string
	cb     *circuitbreaker.CircuitBreaker
}

func NewSMTPService(cfg Config) Service {
	return NewSMTPServiceWithDialer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From)
}

func NewSMTPServiceWithDialer(d Dialer, from string) Service {
	return &smtpService{
		dialer: d,
		from:   from,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxFailures: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
	}
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)

	return s.cb.Execute(func() error {
		return s.dialer.DialAndSend(m)
	})
}

type noopService struct{}

// NewNoopService returns a Service that refuses every send. The worker uses
// it when SMTP is not configured.
func NewNoopService() Service {
	return noopService{}
}

func (noopService) SendCustom(context.Context, string, string, string) error {
	return ErrDisabled
}
