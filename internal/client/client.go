// Package client talks to a running "autokey serve" control server.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"

	"autokey/internal/protocol"
	"autokey/internal/runner"
)

// ErrBusy is returned by Play when the server is already playing a script
var ErrBusy = errors.New("server is already playing a script")

// APIError is a non-2xx response from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client is a control-server client
type Client struct {
	HTTP *resty.Client
}

// New creates a client for baseURL (e.g. "http://127.0.0.1:18181"). token
// may be empty when the server has no api_token.
func New(baseURL, token string) *Client {
	r := resty.New()
	r.SetBaseURL(baseURL)
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")
	r.SetTimeout(30 * time.Second)
	if token != "" {
		r.SetAuthToken(token)
	}
	return &Client{HTTP: r}
}

// Health checks that the server is up
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.HTTP.R().SetContext(ctx).SetError(&protocol.ErrorResponse{}).Get("/health")
	return check(resp, err)
}

// Compile asks the server to compile a script without playing it
func (c *Client) Compile(ctx context.Context, req protocol.CompileRequest) (*protocol.CompileResponse, error) {
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&protocol.CompileResponse{}).
		SetError(&protocol.ErrorResponse{}).
		Post("/api/compile")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return resp.Result().(*protocol.CompileResponse), nil
}

// Play compiles and starts a script on the server
func (c *Client) Play(ctx context.Context, req protocol.CompileRequest) (*protocol.PlayResponse, error) {
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&protocol.PlayResponse{}).
		SetError(&protocol.ErrorResponse{}).
		Post("/api/play")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return resp.Result().(*protocol.PlayResponse), nil
}

// Stop cancels the server's active run. It reports whether one was active.
func (c *Client) Stop(ctx context.Context) (bool, error) {
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetResult(&protocol.StopResponse{}).
		SetError(&protocol.ErrorResponse{}).
		Post("/api/stop")
	if err := check(resp, err); err != nil {
		return false, err
	}
	return resp.Result().(*protocol.StopResponse).Stopped, nil
}

// Status returns the active and last runs
func (c *Client) Status(ctx context.Context) (*runner.Status, error) {
	resp, err := c.HTTP.R().
		SetContext(ctx).
		SetResult(&runner.Status{}).
		SetError(&protocol.ErrorResponse{}).
		Get("/api/status")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return resp.Result().(*runner.Status), nil
}

// Stream is an open subscription to the server's run events
type Stream struct {
	conn *websocket.Conn
}

// Subscribe connects to the server's WebSocket. Events of runs started after
// Subscribe returns are delivered by Next.
func (c *Client) Subscribe(ctx context.Context) (*Stream, error) {
	u, err := url.Parse(c.HTTP.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	header := http.Header{}
	if token := c.HTTP.Token; token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", u, err)
	}
	return &Stream{conn: conn}, nil
}

// Next blocks for the next event. It returns io.EOF once the server closes
// the connection normally.
func (s *Stream) Next() (protocol.Message, error) {
	var msg protocol.Message
	err := s.conn.ReadJSON(&msg)
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return msg, io.EOF
	}
	return msg, err
}

// Close closes the stream
func (s *Stream) Close() error {
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// Watch streams run events until ctx ends, the server closes the connection,
// or fn returns false.
func (c *Client) Watch(ctx context.Context, fn func(protocol.Message) bool) error {
	stream, err := c.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()
	return stream.Each(ctx, fn)
}

// Each calls fn for every event until ctx ends, the server closes the
// connection, or fn returns false.
func (s *Stream) Each(ctx context.Context, fn func(protocol.Message) bool) error {
	// Unblock Next when ctx ends.
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		msg, err := s.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !fn(msg) {
			return nil
		}
	}
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}

	msg := resp.String()
	if e, ok := resp.Error().(*protocol.ErrorResponse); ok && e.Error != "" {
		msg = e.Error
	}
	if resp.StatusCode() == http.StatusConflict {
		return fmt.Errorf("%w: %s", ErrBusy, msg)
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}
