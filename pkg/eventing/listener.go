package eventing

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/katoemba/upnp-go/pkg/log"
	"github.com/katoemba/upnp-go/pkg/netutil"
)

// Default port range the listener binds in.
const (
	DefaultPortFrom = 58050
	DefaultPortTo   = 58099
)

// ListenerConfig configures a Listener. The zero value is usable.
type ListenerConfig struct {
	// PortFrom and PortTo bound the port scan. Defaults to
	// DefaultPortFrom..DefaultPortTo.
	PortFrom int
	PortTo   int

	// Logger receives protocol log events for every callback.
	Logger log.Logger
}

// Listener is the single HTTP endpoint receiving NOTIFY callbacks for all
// subscriptions of a control point. It serves one randomized path, chosen
// at start, so stray HTTP traffic on the port does not look like event
// callbacks. Decoded notifications are published to the Broker; callbacks
// that match no consumer are dropped. Every callback is acknowledged with
// 200 regardless of routing, as devices tear down subscriptions on
// callback errors.
type Listener struct {
	portFrom int
	portTo   int
	logger   log.Logger
	broker   *Broker

	mu     sync.Mutex
	ln     net.Listener
	server *http.Server
	path   string
	port   int
}

// NewListener creates a listener publishing into broker. The listener does
// not bind until Start is called.
func NewListener(broker *Broker, config ListenerConfig) *Listener {
	portFrom, portTo := config.PortFrom, config.PortTo
	if portFrom == 0 {
		portFrom = DefaultPortFrom
	}
	if portTo == 0 {
		portTo = DefaultPortTo
	}
	return &Listener{
		portFrom: portFrom,
		portTo:   portTo,
		logger:   log.OrNoop(config.Logger),
		broker:   broker,
	}
}

// Start binds the listener on the first free port in its range and begins
// serving callbacks. Calling Start on a running listener is a no-op.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln != nil {
		return nil
	}

	ln, err := netutil.ListenRange(l.portFrom, l.portTo)
	if err != nil {
		return fmt.Errorf("binding event listener: %w", err)
	}

	l.path = "/Event/" + strings.ReplaceAll(uuid.NewString(), "-", "")
	l.port = ln.Addr().(*net.TCPAddr).Port
	l.ln = ln
	l.server = &http.Server{
		Handler:           http.HandlerFunc(l.handleNotify),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go l.server.Serve(ln)
	return nil
}

// Stop shuts the listener down, waiting for in-flight callbacks up to the
// context deadline. Calling Stop on a stopped listener is a no-op.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	server := l.server
	l.server = nil
	l.ln = nil
	l.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Running reports whether the listener is bound and serving.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln != nil
}

// CallbackURL builds the callback URL a device at deviceHost should NOTIFY
// to, using the local address that routes toward that device. The listener
// is started on demand.
func (l *Listener) CallbackURL(deviceHost string) (string, error) {
	if err := l.Start(); err != nil {
		return "", err
	}

	ip, err := netutil.LocalIPv4For(deviceHost)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("http://%s:%d%s", ip, l.port, l.path), nil
}

func (l *Listener) handleNotify(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		l.logError("reading callback body", err, nil)
		return
	}

	sid := r.Header.Get("SID")
	l.logger.Log(log.Event{
		Timestamp:  time.Now(),
		Direction:  log.DirectionIn,
		Layer:      log.LayerEventing,
		Category:   log.CategoryMessage,
		RemoteAddr: r.RemoteAddr,
		HTTP: &log.HTTPEvent{
			Method:   r.Method,
			URL:      r.URL.Path,
			SID:      sid,
			BodySize: len(body),
		},
	})

	if r.Method != "NOTIFY" {
		return
	}
	l.mu.Lock()
	path := l.path
	l.mu.Unlock()
	if r.URL.Path != path {
		return
	}

	// A callback without a SID cannot be routed to any subscription.
	if sid == "" {
		return
	}

	properties, err := ParsePropertySet(body)
	if err != nil {
		l.logError("decoding callback property set", err, body)
		return
	}

	l.broker.Publish(Notification{SID: sid, Properties: properties})
}

func (l *Listener) logError(context string, err error, payload []byte) {
	l.logger.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerEventing,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerEventing,
			Message: err.Error(),
			Context: context,
			Payload: payload,
		},
	})
}
