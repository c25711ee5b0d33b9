package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownKind  = errors.New("events: unknown event kind")
	ErrInvalidEvent = errors.New("events: invalid event")
)

// Envelope is the frame every transport carries:
//
//	{"event":"order:status_changed","data":{"orderId":7,"orderNumber":"A-7","status":"delivered"}}
type Envelope struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode parses an envelope into its typed event and checks that the
// fields required by that kind are present.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	var (
		ev  Event
		err error
	)
	switch env.Event {
	case KindCreated:
		var e Created
		err = unmarshal(env.Data, &e)
		ev = e
	case KindAssigned:
		var e Assigned
		err = unmarshal(env.Data, &e)
		ev = e
	case KindStatusChanged:
		var e StatusChanged
		if err = unmarshal(env.Data, &e); err == nil && e.Status == "" {
			err = fmt.Errorf("%w: %s without status", ErrInvalidEvent, env.Event)
		}
		ev = e
	case KindCancelled:
		var e Cancelled
		err = unmarshal(env.Data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Event)
	}
	if err != nil {
		return nil, err
	}

	ref := ev.Ref()
	if ref.OrderID <= 0 || ref.OrderNumber == "" {
		return nil, fmt.Errorf("%w: %s missing order reference", ErrInvalidEvent, env.Event)
	}
	return ev, nil
}

func unmarshal(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidEvent)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}
