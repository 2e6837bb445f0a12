package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.telegram.org"

// Client is a minimal Telegram Bot API client.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
	}
}

// RequestError is returned for non-2xx responses and ok=false payloads.
type RequestError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
	Body        string
}

func (e *RequestError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, e.Body)
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var out getMeResponse
	if err := c.call(ctx, http.MethodGet, "getMe", c.methodURL("getMe"), nil, &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

// GetUpdates long-polls for updates and returns the offset for the next call.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	url := fmt.Sprintf("%s?timeout=%d", c.methodURL("getUpdates"), secs)
	if offset > 0 {
		url += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var out getUpdatesResponse
	if err := c.call(reqCtx, http.MethodGet, "getUpdates", url, nil, &out); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error) {
	if strings.TrimSpace(req.ChatID) == "" {
		return nil, errors.New("telegram sendMessage: missing chat_id")
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out sendMessageResponse
	if err := c.call(ctx, http.MethodPost, "sendMessage", c.methodURL("sendMessage"), body, &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

type okChecker interface {
	status() okResponse
}

func (r okResponse) status() okResponse { return r }

func (c *Client) call(ctx context.Context, httpMethod, method, url string, body []byte, out okChecker) error {
	if c.token == "" {
		return errors.New("telegram bot token is not configured")
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reqErr := &RequestError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
		var parsed okResponse
		if json.Unmarshal(raw, &parsed) == nil {
			reqErr.ErrorCode = parsed.ErrorCode
			reqErr.Description = strings.TrimSpace(parsed.Description)
		}
		return reqErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if status := out.status(); !status.OK {
		return &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   status.ErrorCode,
			Description: status.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
	}
	return nil
}

func isPollTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}
