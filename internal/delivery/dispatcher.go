// Package delivery fans a generated report out to its recipients with
// independent success tracking per recipient.
package delivery

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/careops/reportd/internal/report"
)

// Transport delivers one payload to one address.
type Transport interface {
	Deliver(address string, payload *report.Payload) error
}

// Result is one recipient's outcome. It lives only long enough to be
// aggregated into the execution record.
type Result struct {
	Recipient string `json:"recipient"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// ErrNoRecipients means delivery was requested with an empty recipient
// set; the schedule is misconfigured.
var ErrNoRecipients = errors.New("delivery: no recipients configured")

// ErrNoTransport means no transport is wired at all, so not a single
// attempt can be issued.
var ErrNoTransport = errors.New("delivery: transport not configured")

type Dispatcher struct {
	transport Transport
	log       zerolog.Logger
}

func NewDispatcher(transport Transport, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{transport: transport, log: log}
}

// Send dispatches payload to every recipient, one result per recipient
// in input order. A recipient failing never aborts the rest; only an
// empty recipient set or a missing transport fails the call itself.
func (d *Dispatcher) Send(recipients []string, payload *report.Payload) ([]Result, error) {
	if d.transport == nil {
		return nil, ErrNoTransport
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	results := make([]Result, 0, len(recipients))
	for _, recipient := range recipients {
		if err := d.transport.Deliver(recipient, payload); err != nil {
			d.log.Warn().Str("recipient", recipient).Err(err).Msg("delivery failed")
			results = append(results, Result{Recipient: recipient, Error: err.Error()})
			continue
		}
		results = append(results, Result{Recipient: recipient, Success: true})
	}
	return results, nil
}
