package transport

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
)

// Classify maps a raw transport error onto the outcome taxonomy.
//
// Timeouts and connection failures are transient. SMTP 4xx replies are
// transient by definition. 5xx replies are permanent for the recipient,
// except the authentication/policy family (530, 534, 535) which means the
// account credentials are wrong: a configuration failure, not a bounce.
func Classify(err error) Outcome {
	if err == nil {
		return Succeeded()
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(err)
	}

	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code == 530 || protoErr.Code == 534 || protoErr.Code == 535:
			return Misconfigured(err)
		case protoErr.Code >= 500:
			return Permanent(err)
		case protoErr.Code >= 400:
			return Transient(err)
		}
	}

	// gomail flattens some server replies into plain strings.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "credentials"):
		return Misconfigured(err)
	case strings.Contains(msg, "550") || strings.Contains(msg, "551") || strings.Contains(msg, "553"):
		return Permanent(err)
	}

	return Transient(err)
}
