package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/palettehost/internal/palette"
	"github.com/1broseidon/palettehost/internal/platform"
)

// MessageKind classifies palette messages.
type MessageKind string

const (
	// KindResult carries the value a palette was shown to produce.
	KindResult MessageKind = "result"
	// KindCancel reports that the user abandoned the palette.
	KindCancel MessageKind = "cancel"
	// KindNotify is a free-form notification for the application.
	KindNotify MessageKind = "notify"
	// KindRequestHide asks the host to hide the sender.
	KindRequestHide MessageKind = "requestHide"
)

// ParseMessageKind validates a message kind.
func ParseMessageKind(s string) (MessageKind, error) {
	switch k := MessageKind(s); k {
	case KindResult, KindCancel, KindNotify, KindRequestHide:
		return k, nil
	default:
		return "", fmt.Errorf("invalid message kind %q (expected: result, cancel, notify, requestHide)", s)
	}
}

// Message is sent by a palette to the application.
type Message struct {
	From      platform.WindowID `json:"from"`
	Kind      MessageKind       `json:"kind"`
	RequestID string            `json:"request_id,omitempty"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
}

// WaitRequest is passed as show args by ShowAndWait so the palette can tag
// its answer with RequestID.
type WaitRequest struct {
	RequestID string `json:"request_id"`
	Args      any    `json:"args,omitempty"`
}

var (
	// ErrCancelled is returned by ShowAndWait when the palette sends a cancel.
	ErrCancelled = errors.New("palette cancelled")
	// ErrTimeout is returned by ShowAndWait when no answer arrives in time.
	ErrTimeout = errors.New("timed out waiting for palette")
	// ErrNotShown is returned by ShowAndWait when the show was refused.
	ErrNotShown = errors.New("palette was not shown")
)

// OnMessage subscribes to every message delivered through Send.
func (h *Host) OnMessage(fn func(Message)) (cancel func()) {
	return h.messages.Subscribe(fn)
}

// Send delivers msg to subscribers. A requestHide message also hides the
// sender.
func (h *Host) Send(ctx context.Context, msg Message) error {
	if !h.known(msg.From) {
		return fmt.Errorf("message from %s: %w", msg.From, ErrUnknownPalette)
	}
	h.logger.Debug("palette message", "from", msg.From, "kind", msg.Kind, "request_id", msg.RequestID)
	h.messages.Emit(msg)

	if msg.Kind == KindRequestHide {
		return h.Palette(msg.From).Hide(ctx, palette.HideOptions{})
	}
	return nil
}

// ShowAndWait shows id and blocks until it answers with a result or cancel
// message, the timeout elapses, or ctx ends. The palette is hidden on every
// path. A zero timeout waits for ctx only.
func (h *Host) ShowAndWait(ctx context.Context, id platform.WindowID, opts palette.ShowOptions, timeout time.Duration) (Message, error) {
	requestID := uuid.NewString()
	answers := make(chan Message, 1)
	cancel := h.OnMessage(func(m Message) {
		if m.From != id || (m.Kind != KindResult && m.Kind != KindCancel) {
			return
		}
		if m.RequestID != "" && m.RequestID != requestID {
			return
		}
		select {
		case answers <- m:
		default:
		}
	})
	defer cancel()

	c := h.Palette(id)
	defer func() {
		if err := c.Hide(context.Background(), palette.HideOptions{}); err != nil {
			h.logger.Warn("hide after wait failed", "palette", id, "error", err)
		}
	}()

	opts.Args = WaitRequest{RequestID: requestID, Args: opts.Args}
	shown, err := c.Show(ctx, opts)
	if err != nil {
		return Message{}, err
	}
	if !shown {
		return Message{}, fmt.Errorf("%s: %w", id, ErrNotShown)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case m := <-answers:
		if m.Kind == KindCancel {
			return m, ErrCancelled
		}
		return m, nil
	case <-expired:
		return Message{}, fmt.Errorf("%s after %s: %w", id, timeout, ErrTimeout)
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}
