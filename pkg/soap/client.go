package soap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/katoemba/upnp-go/pkg/log"
)

// MessageLog selects how much of the SOAP exchange is captured in the
// protocol log. Body capture is off by default as envelopes can be large
// (browse results, playlist metadata).
type MessageLog uint8

const (
	// LogNone captures only the exchange metadata (URL, action, status).
	LogNone MessageLog = 0
	// LogBody additionally captures the request envelope.
	LogBody MessageLog = 1
	// LogResponse additionally captures the response envelope.
	LogResponse MessageLog = 2
	// LogBodyAndResponse captures both envelopes.
	LogBodyAndResponse MessageLog = 3
)

// ParseMessageLog parses a message log level from its configuration name.
func ParseMessageLog(s string) (MessageLog, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return LogNone, nil
	case "body":
		return LogBody, nil
	case "response":
		return LogResponse, nil
	case "all", "bodyandresponse":
		return LogBodyAndResponse, nil
	}
	return LogNone, fmt.Errorf("unknown message log level %q", s)
}

func (m MessageLog) logsBody() bool     { return m == LogBody || m == LogBodyAndResponse }
func (m MessageLog) logsResponse() bool { return m == LogResponse || m == LogBodyAndResponse }

// DefaultTimeout bounds a single action invocation when the caller's
// context carries no deadline of its own.
const DefaultTimeout = 30 * time.Second

// Config configures a Client. The zero value is usable.
type Config struct {
	// HTTPClient performs the POST requests. Defaults to a client with
	// DefaultTimeout.
	HTTPClient *http.Client

	// Logger receives protocol log events for every exchange.
	Logger log.Logger

	// MessageLog controls envelope capture in the protocol log.
	MessageLog MessageLog
}

// Client invokes actions against service control URLs. A single Client is
// shared by all services of a control point and is safe for concurrent use.
type Client struct {
	http   *http.Client
	logger log.Logger
	msgLog MessageLog
}

// NewClient creates an action invocation client.
func NewClient(config Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		http:   httpClient,
		logger: log.OrNoop(config.Logger),
		msgLog: config.MessageLog,
	}
}

// Post invokes an action for which no response payload is expected beyond
// the acknowledgement. A non-2xx status is an error.
func (c *Client) Post(ctx context.Context, controlURL string, action Action) error {
	_, err := c.post(ctx, controlURL, action)
	return err
}

// PostWithResult invokes an action and decodes the response element into
// out, which must be a pointer to a struct with xml tags matching the
// action's output arguments. Returns ErrNoValidResponse when the device
// answered without the expected response element.
func (c *Client) PostWithResult(ctx context.Context, controlURL string, action Action, out any) error {
	body, err := c.post(ctx, controlURL, action)
	if err != nil {
		return err
	}
	if err := DecodeResponse(body, action.Name, out); err != nil {
		c.logError(controlURL, action, "decoding action response", err, body)
		return err
	}
	return nil
}

// Invoke is the untyped variant of PostWithResult, returning the output
// arguments as a name to text map. Intended for interactive use against
// actions with no generated response type.
func (c *Client) Invoke(ctx context.Context, controlURL string, action Action) (map[string]string, error) {
	body, err := c.post(ctx, controlURL, action)
	if err != nil {
		return nil, err
	}
	result, err := DecodeResponseMap(body, action.Name)
	if err != nil {
		c.logError(controlURL, action, "decoding action response", err, body)
		return nil, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, controlURL string, action Action) ([]byte, error) {
	envelope := EncodeEnvelope(action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("building action request: %w", err)
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", fmt.Sprintf("%q", action.ServiceType+"#"+action.Name))

	outEvent := log.Event{
		Timestamp:   time.Now(),
		Direction:   log.DirectionOut,
		Layer:       log.LayerControl,
		Category:    log.CategoryMessage,
		RemoteAddr:  req.URL.Host,
		ServiceType: action.ServiceType,
		HTTP: &log.HTTPEvent{
			Method:   http.MethodPost,
			URL:      controlURL,
			Action:   action.Name,
			BodySize: len(envelope),
		},
	}
	if c.msgLog.logsBody() {
		outEvent.HTTP.Body = envelope
	}
	c.logger.Log(outEvent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logError(controlURL, action, "posting action", err, nil)
		return nil, fmt.Errorf("posting %s to %s: %w", action.Name, controlURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logError(controlURL, action, "reading action response", err, nil)
		return nil, fmt.Errorf("reading %s response: %w", action.Name, err)
	}

	status := resp.StatusCode
	inEvent := log.Event{
		Timestamp:   time.Now(),
		Direction:   log.DirectionIn,
		Layer:       log.LayerControl,
		Category:    log.CategoryMessage,
		RemoteAddr:  req.URL.Host,
		ServiceType: action.ServiceType,
		HTTP: &log.HTTPEvent{
			Method:   http.MethodPost,
			URL:      controlURL,
			Action:   action.Name,
			Status:   &status,
			BodySize: len(body),
		},
	}
	if c.msgLog.logsResponse() {
		inEvent.HTTP.Body = body
	}
	c.logger.Log(inEvent)

	if status < 200 || status > 299 {
		if soapErr := decodeUPnPError(body); soapErr != nil {
			return nil, fmt.Errorf("%s failed with status %d: %w", action.Name, status, soapErr)
		}
		return nil, fmt.Errorf("%s failed with status %d", action.Name, status)
	}

	return body, nil
}

func (c *Client) logError(controlURL string, action Action, context string, err error, payload []byte) {
	c.logger.Log(log.Event{
		Timestamp:   time.Now(),
		Direction:   log.DirectionIn,
		Layer:       log.LayerControl,
		Category:    log.CategoryError,
		ServiceType: action.ServiceType,
		Error: &log.ErrorEventData{
			Layer:   log.LayerControl,
			Message: err.Error(),
			Context: context + " " + action.Name + " at " + controlURL,
			Payload: payload,
		},
	})
}
