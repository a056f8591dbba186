package bridge

import (
	"context"
	"errors"
	"sync"
)

// ErrPortClosed is returned by Post after Close.
var ErrPortClosed = errors.New("bridge: port closed")

// Port is the message bus of one page window. Post broadcasts a message to
// every listener on that window without waiting for anyone to act on it;
// listeners must return quickly.
type Port interface {
	Post(ctx context.Context, msg []byte) error
	Listen(fn func(msg []byte)) (unlisten func())
}

// LocalPort is an in-process window bus. Messages are delivered in post
// order from a single dispatch goroutine, mirroring a page's event loop.
type LocalPort struct {
	mu        sync.Mutex
	listeners map[int64]func([]byte)
	nextID    int64
	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

const localPortQueueSize = 256

// NewLocalPort starts an in-process window bus.
func NewLocalPort() *LocalPort {
	p := &LocalPort{
		listeners: make(map[int64]func([]byte)),
		queue:     make(chan []byte, localPortQueueSize),
		done:      make(chan struct{}),
	}
	go p.dispatch()
	return p
}

// Post queues msg for delivery. It blocks only while the queue is full.
func (p *LocalPort) Post(ctx context.Context, msg []byte) error {
	cp := make([]byte, len(msg))
	copy(cp, msg)
	select {
	case <-p.done:
		return ErrPortClosed
	default:
	}
	select {
	case p.queue <- cp:
		return nil
	case <-p.done:
		return ErrPortClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Listen registers fn for every subsequent message.
func (p *LocalPort) Listen(fn func(msg []byte)) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Close stops delivery. Queued messages are discarded.
func (p *LocalPort) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

func (p *LocalPort) dispatch() {
	for {
		select {
		case <-p.done:
			return
		case msg := <-p.queue:
			p.mu.Lock()
			fns := make([]func([]byte), 0, len(p.listeners))
			for _, fn := range p.listeners {
				fns = append(fns, fn)
			}
			p.mu.Unlock()
			for _, fn := range fns {
				fn(msg)
			}
		}
	}
}
