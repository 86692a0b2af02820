// Package transport abstracts message delivery behind a four-way outcome
// taxonomy: success, transient (retryable), permanent (recipient-fatal) and
// configuration (campaign-fatal until an operator intervenes).
package transport

import (
	"context"
	"fmt"
)

type OutcomeKind int

const (
	Success OutcomeKind = iota
	TransientError
	PermanentError
	ConfigurationError
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case TransientError:
		return "transient"
	case PermanentError:
		return "permanent"
	case ConfigurationError:
		return "configuration"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is a tagged result, not an exception to swallow: callers branch on
// Kind and treat Err as diagnostic detail.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

func Succeeded() Outcome              { return Outcome{Kind: Success} }
func Transient(err error) Outcome     { return Outcome{Kind: TransientError, Err: err} }
func Permanent(err error) Outcome     { return Outcome{Kind: PermanentError, Err: err} }
func Misconfigured(err error) Outcome { return Outcome{Kind: ConfigurationError, Err: err} }

type Message struct {
	CampaignID  int64
	RecipientID int64
	To          string
	Subject     string
	Body        string
}

// Transport delivers one message. Send must respect ctx and return within
// its deadline; an expired deadline is classified as transient.
type Transport interface {
	Send(ctx context.Context, msg Message) Outcome
}
