// Package status holds the single most recent outcome shown to the user and
// whether any operation is in flight. Every event overwrites the previous one.
package status

import (
	"errors"
	"sync"
)

// Kind classifies the current message.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Status is a snapshot of the channel.
type Status struct {
	Busy    bool
	Message string
	Kind    Kind
}

// HasMessage reports whether a message is currently visible.
func (s Status) HasMessage() bool {
	return s.Message != ""
}

// Channel is safe for concurrent use.
type Channel struct {
	mu        sync.Mutex
	inFlight  int
	message   string
	kind      Kind
	listeners []func(Status)
}

func New() *Channel {
	return &Channel{}
}

// SetBusy marks the start (true) or the end (false) of an operation. Busy
// stays set while any started operation has not ended.
func (c *Channel) SetBusy(busy bool) {
	c.mu.Lock()
	if busy {
		c.inFlight++
	} else if c.inFlight > 0 {
		c.inFlight--
	}
	c.notifyLocked()
}

// Publish replaces the current message.
func (c *Channel) Publish(kind Kind, message string) {
	c.mu.Lock()
	c.message = message
	c.kind = kind
	c.notifyLocked()
}

// PublishError replaces the current message with err's text.
func (c *Channel) PublishError(err error) {
	if err == nil {
		return
	}
	c.Publish(KindError, "Error: "+Reason(err))
}

// Clear dismisses the current message.
func (c *Channel) Clear() {
	c.mu.Lock()
	c.message = ""
	c.kind = ""
	c.notifyLocked()
}

// Current returns the latest state.
func (c *Channel) Current() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive every change. fn runs on the goroutine
// that caused the change and must not call back into the channel.
func (c *Channel) Subscribe(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Channel) snapshotLocked() Status {
	return Status{Busy: c.inFlight > 0, Message: c.message, Kind: c.kind}
}

// notifyLocked releases the lock before calling listeners.
func (c *Channel) notifyLocked() {
	snap := c.snapshotLocked()
	listeners := append([]func(Status){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Reasoner is implemented by errors carrying a user-facing reason.
type Reasoner interface {
	Reason() string
}

// Reason returns the user-facing text of err.
func Reason(err error) string {
	var r Reasoner
	if errors.As(err, &r) {
		return r.Reason()
	}
	return err.Error()
}
