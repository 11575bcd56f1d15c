package eventing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/katoemba/upnp-go/pkg/log"
)

const (
	// DefaultRequestedTimeout is the subscription duration asked of the
	// device.
	DefaultRequestedTimeout = 120 * time.Second

	// DefaultGrantedTimeout is assumed when the device grants a
	// subscription without a parseable TIMEOUT header.
	DefaultGrantedTimeout = 120 * time.Second

	// renewalMargin is how long before expiry the renewal fires.
	renewalMargin = 10 * time.Second
)

var (
	// ErrInvalidState is returned when an operation is attempted from a
	// state it is not allowed in.
	ErrInvalidState = errors.New("operation not allowed in current subscription state")

	// ErrNoSID is returned when the device accepted a subscription but
	// did not return a subscription identifier.
	ErrNoSID = errors.New("subscribe response carried no SID")
)

// SubscriptionConfig configures a Subscription.
type SubscriptionConfig struct {
	// EventURL is the service's absolute event subscription URL.
	EventURL string

	// ServiceType and DeviceID identify the service in log events.
	ServiceType string
	DeviceID    string

	// CallbackURL produces the NOTIFY callback URL for this service's
	// device. Called on every initial subscribe, so the listener can be
	// bound lazily.
	CallbackURL func() (string, error)

	// HTTPClient performs the GENA requests. Defaults to a client with a
	// 30 second timeout.
	HTTPClient *http.Client

	// Logger receives protocol log events.
	Logger log.Logger

	// RequestedTimeout overrides DefaultRequestedTimeout.
	RequestedTimeout time.Duration
}

// Subscription manages one service's event subscription. All methods are
// safe for concurrent use; state transitions are guarded, so overlapping
// operations fail with ErrInvalidState instead of racing.
type Subscription struct {
	eventURL    string
	serviceType string
	deviceID    string
	callbackURL func() (string, error)
	client      *http.Client
	logger      log.Logger
	requested   time.Duration

	mu    sync.Mutex
	state State
	sid   string
	timer *time.Timer
}

// NewSubscription creates a subscription in StateUnsubscribed. No request
// is sent until Subscribe is called.
func NewSubscription(config SubscriptionConfig) *Subscription {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	requested := config.RequestedTimeout
	if requested == 0 {
		requested = DefaultRequestedTimeout
	}
	return &Subscription{
		eventURL:    config.EventURL,
		serviceType: config.ServiceType,
		deviceID:    config.DeviceID,
		callbackURL: config.CallbackURL,
		client:      client,
		logger:      log.OrNoop(config.Logger),
		requested:   requested,
	}
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SID returns the current subscription identifier, or the empty string
// when no subscription is active. Consumers filter notifications against
// this value at delivery time.
func (s *Subscription) SID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

// Subscribe sends the initial SUBSCRIBE request and schedules renewal.
// Allowed from StateUnsubscribed and StateFailed. A failure lands the
// subscription in StateFailed; no automatic retry is attempted.
func (s *Subscription) Subscribe(ctx context.Context) error {
	if err := s.begin(StateSubscribing, StateUnsubscribed, StateFailed); err != nil {
		return err
	}

	callback, err := s.callbackURL()
	if err != nil {
		s.fail("resolving callback URL: " + err.Error())
		return fmt.Errorf("resolving callback URL: %w", err)
	}

	sid, granted, err := s.request(ctx, "SUBSCRIBE", map[string]string{
		"CALLBACK": "<" + callback + ">",
		"NT":       "upnp:event",
		"TIMEOUT":  timeoutHeader(s.requested),
	})
	if err != nil {
		s.fail("subscribe failed: " + err.Error())
		return err
	}
	if sid == "" {
		s.fail(ErrNoSID.Error())
		return ErrNoSID
	}

	s.mu.Lock()
	if s.state == StateSubscribing {
		s.sid = sid
		s.setStateLocked(StateSubscribed, "subscribed for "+granted.String())
		s.scheduleLocked(granted)
	}
	s.mu.Unlock()
	return nil
}

// Unsubscribe cancels the renewal timer and revokes the subscription with
// the device. Allowed from StateSubscribed; a failed subscription is reset
// locally without a request, and unsubscribing twice is a no-op. While a
// subscribe or renewal is in flight, Unsubscribe rejects with
// ErrInvalidState rather than putting a second request in flight. When the
// device cannot be reached the subscription still lands in
// StateUnsubscribed; the request error is returned so callers can log it.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateUnsubscribed:
		s.mu.Unlock()
		return nil
	case StateFailed:
		// Nothing active with the device to revoke.
		s.cancelTimerLocked()
		s.sid = ""
		s.setStateLocked(StateUnsubscribed, "")
		s.mu.Unlock()
		return nil
	case StateSubscribed:
	default:
		current := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, current)
	}
	s.cancelTimerLocked()
	sid := s.sid
	s.setStateLocked(StateUnsubscribing, "")
	s.mu.Unlock()

	var err error
	if sid != "" {
		_, _, err = s.request(ctx, "UNSUBSCRIBE", map[string]string{"SID": sid})
	}

	s.mu.Lock()
	s.sid = ""
	s.setStateLocked(StateUnsubscribed, "")
	s.mu.Unlock()
	return err
}

// Renew extends the subscription with the device. Allowed from
// StateSubscribed; the renewal timer calls this on its own, so callers
// rarely need to. A failed renewal lands in StateFailed and triggers
// exactly one fresh subscribe; if that also fails, the subscription
// stays failed.
func (s *Subscription) Renew(ctx context.Context) error {
	if err := s.begin(StateRenewing, StateSubscribed); err != nil {
		return err
	}

	s.mu.Lock()
	sid := s.sid
	s.mu.Unlock()

	newSID, granted, err := s.request(ctx, "SUBSCRIBE", map[string]string{
		"SID":     sid,
		"TIMEOUT": timeoutHeader(s.requested),
	})
	if err != nil {
		s.mu.Lock()
		failed := s.state == StateRenewing
		if failed {
			s.sid = ""
			s.setStateLocked(StateFailed, "renewal failed: "+err.Error())
		}
		s.mu.Unlock()

		// One-shot recovery with a fresh subscription.
		if failed {
			s.Subscribe(ctx)
		}
		return err
	}

	s.mu.Lock()
	if s.state == StateRenewing {
		// Some devices rotate the identifier on renewal.
		if newSID != "" {
			s.sid = newSID
		}
		s.setStateLocked(StateSubscribed, "renewed for "+granted.String())
		s.scheduleLocked(granted)
	}
	s.mu.Unlock()
	return nil
}

// renew runs when the renewal timer fires.
func (s *Subscription) renew() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Renew(ctx)
}

// begin transitions into next if the current state is one of allowed.
func (s *Subscription) begin(next State, allowed ...State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range allowed {
		if s.state == a {
			s.setStateLocked(next, "")
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
}

// fail records a failed subscribe attempt. Skipped when another operation
// moved the state on while the request was in flight.
func (s *Subscription) fail(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubscribing {
		return
	}
	s.sid = ""
	s.cancelTimerLocked()
	s.setStateLocked(StateFailed, reason)
}

func (s *Subscription) scheduleLocked(granted time.Duration) {
	s.cancelTimerLocked()
	delay := granted - renewalMargin
	if delay <= 0 {
		delay = granted / 2
	}
	s.timer = time.AfterFunc(delay, s.renew)
}

func (s *Subscription) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Subscription) setStateLocked(next State, reason string) {
	if s.state == next {
		return
	}
	old := s.state
	s.state = next
	s.logger.Log(log.Event{
		Timestamp:   time.Now(),
		Direction:   log.DirectionOut,
		Layer:       log.LayerEventing,
		Category:    log.CategoryState,
		DeviceID:    s.deviceID,
		ServiceType: s.serviceType,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySubscription,
			OldState: old.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

// request performs one GENA request and returns the SID and granted
// timeout from the response. Success is any status in 200..204.
func (s *Subscription) request(ctx context.Context, method string, headers map[string]string) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.eventURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("building %s request: %w", method, err)
	}
	if u, err := url.Parse(s.eventURL); err == nil {
		req.Header.Set("HOST", u.Host)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	s.logger.Log(log.Event{
		Timestamp:   time.Now(),
		Direction:   log.DirectionOut,
		Layer:       log.LayerEventing,
		Category:    log.CategoryMessage,
		RemoteAddr:  req.URL.Host,
		DeviceID:    s.deviceID,
		ServiceType: s.serviceType,
		HTTP: &log.HTTPEvent{
			Method: method,
			URL:    s.eventURL,
			SID:    headers["SID"],
		},
	})

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%s %s: %w", method, s.eventURL, err)
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	sid := resp.Header.Get("SID")
	s.logger.Log(log.Event{
		Timestamp:   time.Now(),
		Direction:   log.DirectionIn,
		Layer:       log.LayerEventing,
		Category:    log.CategoryMessage,
		RemoteAddr:  req.URL.Host,
		DeviceID:    s.deviceID,
		ServiceType: s.serviceType,
		HTTP: &log.HTTPEvent{
			Method: method,
			URL:    s.eventURL,
			SID:    sid,
			Status: &status,
		},
	})

	if status < 200 || status > 204 {
		return "", 0, fmt.Errorf("%s %s: unexpected status %d", method, s.eventURL, status)
	}
	return sid, parseTimeout(resp.Header.Get("TIMEOUT")), nil
}

// timeoutHeader renders a duration as a GENA TIMEOUT header value.
func timeoutHeader(d time.Duration) string {
	return "Second-" + strconv.Itoa(int(d/time.Second))
}

// parseTimeout parses a TIMEOUT response header ("Second-300"). Anything
// unparseable, including "infinite", falls back to DefaultGrantedTimeout.
func parseTimeout(header string) time.Duration {
	rest, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(header)), "second-")
	if !ok {
		return DefaultGrantedTimeout
	}
	seconds, err := strconv.Atoi(rest)
	if err != nil || seconds <= 0 {
		return DefaultGrantedTimeout
	}
	return time.Duration(seconds) * time.Second
}
