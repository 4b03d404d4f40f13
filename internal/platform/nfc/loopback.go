package nfc

import (
	"bytes"
	"context"
	"sync"
)

// Loopback is an in-memory Driver. Writes on one side are delivered to the
// listeners of its peer.
type Loopback struct {
	mu          sync.Mutex
	supported   bool
	enabled     bool
	peer        *Loopback
	listeners   map[int]func([]byte)
	nextID      int
	sessionOpen bool
	writeErrs   []error
}

var _ Driver = (*Loopback)(nil)

// NewLoopback returns a supported and enabled device with no peer
func NewLoopback() *Loopback {
	return &Loopback{
		supported: true,
		enabled:   true,
		listeners: make(map[int]func([]byte)),
	}
}

// NewLoopbackPair returns two devices in range of each other
func NewLoopbackPair() (*Loopback, *Loopback) {
	a, b := NewLoopback(), NewLoopback()
	a.peer, b.peer = b, a
	return a, b
}

// SetSupported toggles hardware support
func (l *Loopback) SetSupported(supported bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.supported = supported
}

// SetEnabled toggles the radio
func (l *Loopback) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// FailNextWrite queues err to be returned by the next session write
func (l *Loopback) FailNextWrite(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErrs = append(l.writeErrs, err)
}

// Inject delivers data to this device's own listeners, as if a tag had been tapped
func (l *Loopback) Inject(data []byte) {
	l.deliver(data)
}

// ListenerCount returns the number of active subscriptions
func (l *Loopback) ListenerCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.listeners)
}

// SessionOpen reports whether a write session is currently held
func (l *Loopback) SessionOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionOpen
}

func (l *Loopback) Initialize(ctx context.Context) (Capability, error) {
	if err := ctx.Err(); err != nil {
		return Capability{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return Capability{Supported: l.supported, Enabled: l.supported && l.enabled}, nil
}

func (l *Loopback) PromptEnable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.supported {
		return ErrNotSupported
	}
	l.enabled = true
	return nil
}

func (l *Loopback) RequestSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.readyLocked(); err != nil {
		return nil, err
	}
	if l.sessionOpen {
		return nil, ErrSessionBusy
	}
	l.sessionOpen = true
	return &loopbackSession{device: l}, nil
}

func (l *Loopback) Listen(ctx context.Context, onTag func([]byte)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.readyLocked(); err != nil {
		return nil, err
	}
	id := l.nextID
	l.nextID++
	l.listeners[id] = onTag
	return &loopbackSubscription{device: l, id: id}, nil
}

func (l *Loopback) readyLocked() error {
	if !l.supported {
		return ErrNotSupported
	}
	if !l.enabled {
		return ErrDisabled
	}
	return nil
}

func (l *Loopback) deliver(data []byte) {
	l.mu.Lock()
	callbacks := make([]func([]byte), 0, len(l.listeners))
	for _, cb := range l.listeners {
		callbacks = append(callbacks, cb)
	}
	l.mu.Unlock()

	// callbacks run without the lock so they may stop their own subscription
	for _, cb := range callbacks {
		cb(bytes.Clone(data))
	}
}

type loopbackSession struct {
	device *Loopback
	once   sync.Once
	closed bool
	mu     sync.Mutex
}

func (s *loopbackSession) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	d := s.device
	d.mu.Lock()
	if len(d.writeErrs) > 0 {
		err := d.writeErrs[0]
		d.writeErrs = d.writeErrs[1:]
		d.mu.Unlock()
		return err
	}
	peer := d.peer
	d.mu.Unlock()

	if peer == nil || peer.ListenerCount() == 0 {
		return ErrNoPeer
	}
	peer.deliver(data)
	return nil
}

func (s *loopbackSession) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.device.mu.Lock()
		s.device.sessionOpen = false
		s.device.mu.Unlock()
	})
	return nil
}

type loopbackSubscription struct {
	device *Loopback
	id     int
	once   sync.Once
}

func (s *loopbackSubscription) Stop() error {
	s.once.Do(func() {
		s.device.mu.Lock()
		delete(s.device.listeners, s.id)
		s.device.mu.Unlock()
	})
	return nil
}
