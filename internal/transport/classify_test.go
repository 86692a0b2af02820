package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{name: "nil", err: nil, want: Success},
		{name: "deadline", err: fmt.Errorf("smtp send deadline: %w", context.DeadlineExceeded), want: TransientError},
		{name: "net timeout", err: fmt.Errorf("dial: %w", net.Error(timeoutErr{})), want: TransientError},
		{name: "smtp 421", err: &textproto.Error{Code: 421, Msg: "service not available"}, want: TransientError},
		{name: "smtp 450", err: &textproto.Error{Code: 450, Msg: "mailbox busy"}, want: TransientError},
		{name: "smtp 550", err: &textproto.Error{Code: 550, Msg: "no such user"}, want: PermanentError},
		{name: "smtp 553", err: &textproto.Error{Code: 553, Msg: "invalid address"}, want: PermanentError},
		{name: "smtp 535 auth", err: &textproto.Error{Code: 535, Msg: "authentication failed"}, want: ConfigurationError},
		{name: "smtp 530 auth required", err: &textproto.Error{Code: 530, Msg: "authentication required"}, want: ConfigurationError},
		{name: "wrapped auth string", err: errors.New("535 authentication credentials invalid"), want: ConfigurationError},
		{name: "flattened bounce string", err: errors.New("server replied: 550 user unknown"), want: PermanentError},
		{name: "unknown", err: errors.New("connection reset by peer"), want: TransientError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err).Kind)
		})
	}
}

func TestRetryableAbortsOnNonTransientErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		aborts bool
	}{
		{name: "nil", err: nil, aborts: false},
		{name: "smtp 421 retried", err: &textproto.Error{Code: 421, Msg: "service not available"}, aborts: false},
		{name: "smtp 550 aborts", err: &textproto.Error{Code: 550, Msg: "no such user"}, aborts: true},
		{name: "smtp 535 auth aborts", err: &textproto.Error{Code: 535, Msg: "authentication failed"}, aborts: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := retryable(tt.err)
			var perm *backoff.PermanentError
			assert.Equal(t, tt.aborts, errors.As(got, &perm))
			if tt.err == nil {
				assert.NoError(t, got)
			} else if !tt.aborts {
				assert.Equal(t, tt.err, got)
			}
		})
	}
}

func TestSMTPMissingConfigIsConfigurationError(t *testing.T) {
	t.Parallel()

	s := NewSMTP("", 25, "", "", "", 5)
	out := s.Send(context.Background(), Message{To: "a@example.com"})
	assert.Equal(t, ConfigurationError, out.Kind)
}
