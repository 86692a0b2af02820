package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"
)

// SMTP delivers messages over a single SMTP account. A token-bucket pacer
// smooths dial bursts below the shared hourly ceiling enforced upstream.
type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	pacer *rate.Limiter
}

func NewSMTP(host string, port int, user, password, from string, pace float64) *SMTP {
	if pace <= 0 {
		pace = 1
	}
	return &SMTP{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		pacer:    rate.NewLimiter(rate.Limit(pace), 1),
	}
}

func (s *SMTP) Send(ctx context.Context, msg Message) Outcome {
	if s.Host == "" || s.From == "" {
		return Misconfigured(errors.New("smtp transport missing host or sender address"))
	}

	if err := s.pacer.Wait(ctx); err != nil {
		return Transient(fmt.Errorf("send pacing interrupted: %w", err))
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.Body)

	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)

	// Short in-call retry before an outcome is classified; anything that
	// survives the backoff window is reported upward. Only transient errors
	// are worth re-dialing, so the rest abort the loop immediately.
	operation := func() error {
		return retryable(s.dialAndSend(ctx, d, m))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if err != nil {
		return Classify(err)
	}
	return Succeeded()
}

// dialAndSend bounds the blocking gomail call with the caller's context; a
// send still in flight at deadline is abandoned and reported as an error.
func (s *SMTP) dialAndSend(ctx context.Context, d *gomail.Dialer, m *gomail.Message) error {
	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send deadline: %w", ctx.Err())
	}
}

// retryable gates the backoff loop on the error's classification: permanent
// rejections and auth failures come back on every dial, so retrying them only
// burns the send deadline.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if Classify(err).Kind == TransientError {
		return err
	}
	return backoff.Permanent(err)
}
