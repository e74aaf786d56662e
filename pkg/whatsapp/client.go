package whatsapp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "ticketflow/internal/errors"
	"ticketflow/pkg/circuitbreaker"
	"ticketflow/pkg/whatsapp/types"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	maxResponseBytes = 64 << 20
	lookupRetries    = 2
)

// Client talks to a whatsapp-web.js style HTTP bridge on behalf of one
// session. It implements types.Session.
type Client struct {
	baseURL     string
	apiKey      string
	sessionName string
	channelID   int64
	client      *http.Client
	limiter     *rate.Limiter
	breaker     *circuitbreaker.Breaker
	newBackoff  func() backoff.BackOff
}

var _ types.Session = (*Client)(nil)

// NewClient creates a bridge client. Outbound sends are throttled to
// SendRate messages per second with bursts of SendBurst.
func NewClient(config types.ClientConfig) *Client {
	limit := rate.Inf
	if config.SendRate > 0 {
		limit = rate.Limit(config.SendRate)
	}
	burst := config.SendBurst
	if burst <= 0 {
		burst = 1
	}

	httpClient := &http.Client{Timeout: config.Timeout}
	if config.Insecure {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed bridges
		httpClient.Transport = transport
	}

	return &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		apiKey:      config.APIKey,
		sessionName: config.SessionName,
		channelID:   config.ChannelID,
		client:      httpClient,
		limiter:     rate.NewLimiter(limit, burst),
		breaker: circuitbreaker.New("bridge:"+config.SessionName,
			config.BreakerFailures, config.BreakerCooldown, config.Logger),
		newBackoff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxInterval = 2 * time.Second
			return backoff.WithMaxRetries(bo, lookupRetries)
		},
	}
}

func (c *Client) ChannelID() int64 { return c.channelID }

func (c *Client) Name() string { return c.sessionName }

func (c *Client) SendText(ctx context.Context, chatID, text string) (*types.Message, error) {
	req := types.SendTextRequest{Session: c.sessionName, ChatID: chatID, Text: text}
	var msg types.Message
	if err := c.send(ctx, types.EndpointSendText, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SendMedia(ctx context.Context, chatID string, media *types.Media, caption string) (*types.Message, error) {
	if media == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "media is required")
	}

	req := types.SendFileRequest{
		Session: c.sessionName,
		ChatID:  chatID,
		File: types.FileData{
			Mimetype: media.Mimetype,
			Filename: media.Filename,
			Data:     base64.StdEncoding.EncodeToString(media.Data),
		},
		Caption: caption,
	}
	var msg types.Message
	if err := c.send(ctx, types.EndpointSendFile, req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) GetContact(ctx context.Context, contactID string) (*types.Contact, error) {
	var contact types.Contact
	if err := c.lookup(ctx, types.EndpointContacts, url.Values{"contactId": {contactID}}, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *Client) GetProfilePicURL(ctx context.Context, contactID string) (string, error) {
	var pic types.ProfilePicture
	if err := c.lookup(ctx, types.EndpointProfilePicture, url.Values{"contactId": {contactID}}, &pic); err != nil {
		return "", err
	}
	return pic.URL, nil
}

func (c *Client) GetChat(ctx context.Context, chatID string) (*types.Chat, error) {
	var chat types.Chat
	if err := c.lookup(ctx, types.EndpointChats, url.Values{"chatId": {chatID}}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *Client) GetQuotedMessage(ctx context.Context, messageID string) (*types.Message, error) {
	var msg types.Message
	endpoint := types.EndpointMessages + "/" + url.PathEscape(messageID) + "/quoted"
	if err := c.lookup(ctx, endpoint, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DownloadMedia(ctx context.Context, messageID string) (*types.Media, error) {
	var media types.Media
	endpoint := types.EndpointMessages + "/" + url.PathEscape(messageID) + "/media"
	err := c.lookup(ctx, endpoint, nil, &media)
	if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(media.Data) == 0 {
		return nil, nil
	}
	return &media, nil
}

// send posts a JSON body after waiting for the rate limiter. Sends are not
// retried since the bridge gives no idempotency guarantee.
func (c *Client) send(ctx context.Context, endpoint string, body interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "send rate limiter wait aborted")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, nil, payload, out)
}

// lookup issues a GET, retrying transient failures with exponential backoff.
func (c *Client) lookup(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("session", c.sessionName)

	return backoff.Retry(func() error {
		err := c.do(ctx, http.MethodGet, endpoint, query, nil, out)
		if err != nil && !apperrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(c.newBackoff(), ctx))
}

// BreakerState reports whether calls to the bridge are currently allowed.
func (c *Client) BreakerState() circuitbreaker.State { return c.breaker.State() }

// do runs one request through the circuit breaker. Only retryable failures
// (network errors, 5xx, 429) count against the bridge; a rejected call fails
// fast with a non-retryable channel error.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload []byte, out interface{}) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, method, endpoint, query, payload, out)
	}, apperrors.IsRetryable)

	var openErr *circuitbreaker.OpenError
	if errors.As(err, &openErr) {
		return apperrors.Wrap(err, apperrors.ErrCodeChannelAPI, "bridge unavailable")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, query url.Values, payload []byte, out interface{}) error {
	reqURL := c.baseURL + types.APIBase + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeTimeout, "bridge request aborted")
		}
		var netErr interface{ Timeout() bool }
		retryable := errors.As(err, &netErr) && netErr.Timeout()
		appErr := apperrors.NewChannelAPIError(endpoint, 0, err)
		appErr.Retryable = retryable || errors.Is(err, io.ErrUnexpectedEOF)
		return appErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperrors.NewChannelAPIError(endpoint, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusNotFound {
		return apperrors.NewNotFoundError("bridge resource", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp types.ErrorResponse
		detail := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &errResp) == nil && (errResp.Message != "" || errResp.Error != "") {
			detail = strings.TrimSpace(errResp.Error + " " + errResp.Message)
		}
		return apperrors.NewChannelAPIError(endpoint, resp.StatusCode,
			fmt.Errorf("request failed with status %d: %s", resp.StatusCode, detail))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.NewChannelAPIError(endpoint, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
