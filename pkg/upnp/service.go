package upnp

import (
	"context"
	"errors"

	"github.com/katoemba/upnp-go/pkg/description"
	"github.com/katoemba/upnp-go/pkg/eventing"
	"github.com/katoemba/upnp-go/pkg/log"
	"github.com/katoemba/upnp-go/pkg/soap"
)

// ErrNoEventing is returned when subscribing to a service whose
// description carries no event subscription URL.
var ErrNoEventing = errors.New("service does not support eventing")

// Service is one service instance on a discovered device. It bundles the
// resolved endpoint URLs with the shared SOAP client and the service's
// event subscription.
type Service struct {
	deviceID     string
	friendlyName string
	serviceType  string
	serviceID    string
	controlURL   string
	eventURL     string
	scpd         *description.SCPD

	soap   *soap.Client
	sub    *eventing.Subscription
	broker *eventing.Broker
}

// TypedService is implemented by profile wrappers around Service. The
// generic *Service implements it too, so untyped services flow through the
// same registry paths.
type TypedService interface {
	// Base returns the underlying generic service.
	Base() *Service
}

// ServiceFactory wraps a generic service in its typed profile.
type ServiceFactory func(*Service) TypedService

// ServiceConfig describes a service endpoint for direct construction,
// bypassing discovery. Used when the endpoints are already known.
type ServiceConfig struct {
	DeviceID    string
	ServiceType string
	ServiceID   string
	ControlURL  string
	EventURL    string

	// SOAP is the action client. Defaults to a plain client.
	SOAP *soap.Client

	// Broker receives this service's notifications. Defaults to a
	// private broker; wire the same broker into an eventing.Listener to
	// receive callbacks.
	Broker *eventing.Broker

	// CallbackURL produces the NOTIFY callback URL for subscriptions.
	CallbackURL func() (string, error)

	// Logger receives protocol log events.
	Logger log.Logger
}

// NewService constructs a service from known endpoints.
func NewService(config ServiceConfig) *Service {
	soapClient := config.SOAP
	if soapClient == nil {
		soapClient = soap.NewClient(soap.Config{Logger: config.Logger})
	}
	broker := config.Broker
	if broker == nil {
		broker = eventing.NewBroker()
	}
	callbackURL := config.CallbackURL
	if callbackURL == nil {
		callbackURL = func() (string, error) {
			return "", errors.New("no callback listener configured")
		}
	}
	return &Service{
		deviceID:    config.DeviceID,
		serviceType: config.ServiceType,
		serviceID:   config.ServiceID,
		controlURL:  config.ControlURL,
		eventURL:    config.EventURL,
		soap:        soapClient,
		broker:      broker,
		sub: eventing.NewSubscription(eventing.SubscriptionConfig{
			EventURL:    config.EventURL,
			ServiceType: config.ServiceType,
			DeviceID:    config.DeviceID,
			CallbackURL: callbackURL,
			Logger:      config.Logger,
		}),
	}
}

// Base implements TypedService.
func (s *Service) Base() *Service { return s }

// DeviceID returns the identity key of the device this service belongs to.
func (s *Service) DeviceID() string { return s.deviceID }

// DeviceFriendlyName returns the friendly name of the owning device.
func (s *Service) DeviceFriendlyName() string { return s.friendlyName }

// ServiceType returns the capability URN.
func (s *Service) ServiceType() string { return s.serviceType }

// ServiceID returns the service identifier from the device description.
func (s *Service) ServiceID() string { return s.serviceID }

// ControlURL returns the absolute action invocation URL.
func (s *Service) ControlURL() string { return s.controlURL }

// EventURL returns the absolute event subscription URL.
func (s *Service) EventURL() string { return s.eventURL }

// SCPD returns the service's capability description, or nil when it could
// not be loaded.
func (s *Service) SCPD() *description.SCPD { return s.scpd }

// Post invokes an action without decoding a response payload.
func (s *Service) Post(ctx context.Context, action string, args []soap.Arg) error {
	return s.soap.Post(ctx, s.controlURL, soap.Action{
		Name:        action,
		ServiceType: s.serviceType,
		Args:        args,
	})
}

// PostWithResult invokes an action and decodes the response element into
// out.
func (s *Service) PostWithResult(ctx context.Context, action string, args []soap.Arg, out any) error {
	return s.soap.PostWithResult(ctx, s.controlURL, soap.Action{
		Name:        action,
		ServiceType: s.serviceType,
		Args:        args,
	}, out)
}

// Invoke invokes an action and returns its output arguments as a map.
func (s *Service) Invoke(ctx context.Context, action string, args []soap.Arg) (map[string]string, error) {
	return s.soap.Invoke(ctx, s.controlURL, soap.Action{
		Name:        action,
		ServiceType: s.serviceType,
		Args:        args,
	})
}

// Subscribe starts event delivery for this service. Services without an
// event subscription URL reject with ErrNoEventing.
func (s *Service) Subscribe(ctx context.Context) error {
	if s.eventURL == "" {
		return ErrNoEventing
	}
	return s.sub.Subscribe(ctx)
}

// Renew extends the active subscription ahead of its timer.
func (s *Service) Renew(ctx context.Context) error {
	if s.eventURL == "" {
		return ErrNoEventing
	}
	return s.sub.Renew(ctx)
}

// Unsubscribe stops event delivery for this service.
func (s *Service) Unsubscribe(ctx context.Context) error {
	return s.sub.Unsubscribe(ctx)
}

// SubscriptionState returns the current subscription lifecycle state.
func (s *Service) SubscriptionState() eventing.State {
	return s.sub.State()
}

// SID returns the current subscription identifier, if any.
func (s *Service) SID() string {
	return s.sub.SID()
}

// Events registers a consumer for this service's notifications. The filter
// compares against the subscription's identifier at delivery time, so
// notifications for a stale identifier after a resubscribe are dropped.
// cancel unregisters the consumer and closes the channel.
func (s *Service) Events() (<-chan eventing.Notification, func()) {
	return s.broker.Subscribe(func(n eventing.Notification) bool {
		sid := s.sub.SID()
		return sid != "" && n.SID == sid
	})
}
