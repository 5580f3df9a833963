// Package gate answers whether the remote document store is reachable right
// now. Readers and writers consult a Gate before every remote call and take
// the local-only path when it reports false.
package gate

import (
	"context"
	"net"
	"sync/atomic"
	"time"
)

// Gate reports remote reachability. Implementations must be safe for
// concurrent use and must not block longer than their own probe timeout.
type Gate interface {
	Online(ctx context.Context) bool
}

// Func adapts a plain function to a Gate.
type Func func(ctx context.Context) bool

func (f Func) Online(ctx context.Context) bool { return f(ctx) }

// Static is a Gate whose answer is set explicitly. Tests and the
// offline-only mode use it.
type Static struct {
	online atomic.Bool
}

// NewStatic returns a Static gate with the given initial answer.
func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

func (s *Static) Online(context.Context) bool { return s.online.Load() }

// Set changes the answer returned by Online.
func (s *Static) Set(online bool) { s.online.Store(online) }

// DefaultDialTimeout bounds a single reachability probe.
const DefaultDialTimeout = 2 * time.Second

// Dial probes reachability by opening a TCP connection to Addr.
type Dial struct {
	Addr    string
	Timeout time.Duration

	dialer net.Dialer
}

// NewDial returns a Dial gate for host:port.
func NewDial(addr string, timeout time.Duration) *Dial {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &Dial{Addr: addr, Timeout: timeout}
}

func (d *Dial) Online(ctx context.Context) bool {
	if d.Addr == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()
	conn, err := d.dialer.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
