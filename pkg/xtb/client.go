// Package xtb is a minimal xAPI client: login, the instrument list and
// logout over a single websocket connection.
package xtb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
)

const defaultURL = "wss://ws.xtb.com/real"

// Client executes xAPI commands over a websocket.
type Client interface {
	Login(ctx context.Context, userID, password string) error
	GetAllSymbols(ctx context.Context) ([]Symbol, error)
	Logout(ctx context.Context) error
	Close() error
}

// Symbol is one instrument record from getAllSymbols.
type Symbol struct {
	Symbol       string `json:"symbol"`
	Description  string `json:"description"`
	CategoryName string `json:"categoryName"`
	Currency     string `json:"currency"`
	GroupName    string `json:"groupName"`
}

// APIError is a command rejected by the server (status false).
type APIError struct {
	Command string
	Code    string
	Descr   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xtb: %s rejected: %s %s", e.Command, e.Code, e.Descr)
}

type request struct {
	Command   string `json:"command"`
	Arguments any    `json:"arguments,omitempty"`
}

type response struct {
	Status          bool            `json:"status"`
	ReturnData      json.RawMessage `json:"returnData"`
	StreamSessionID string          `json:"streamSessionId"`
	ErrorCode       string          `json:"errorCode"`
	ErrorDescr      string          `json:"errorDescr"`
}

// Option configures the client.
type Option func(*wsClient)

// WithURL overrides the default endpoint.
func WithURL(url string) Option {
	return func(c *wsClient) {
		c.url = url
	}
}

// WithTimeout bounds each command round trip.
func WithTimeout(d time.Duration) Option {
	return func(c *wsClient) {
		c.timeout = d
	}
}

type wsClient struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
}

// NewClient creates an xAPI client. The connection is opened by Login.
func NewClient(opts ...Option) Client {
	c := &wsClient{
		url:     defaultURL,
		timeout: 30 * time.Second,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *wsClient) Login(ctx context.Context, userID, password string) error {
	c.mu.Lock()
	if c.conn == nil {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.mu.Unlock()
			return eris.Wrapf(err, "xtb: dial %s", c.url)
		}
		c.conn = conn
	}
	c.mu.Unlock()

	resp, err := c.execute(ctx, request{
		Command: "login",
		Arguments: map[string]string{
			"userId":   userID,
			"password": password,
		},
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sessionID = resp.StreamSessionID
	c.mu.Unlock()
	return nil
}

func (c *wsClient) GetAllSymbols(ctx context.Context) ([]Symbol, error) {
	resp, err := c.execute(ctx, request{Command: "getAllSymbols"})
	if err != nil {
		return nil, err
	}
	var symbols []Symbol
	if err := json.Unmarshal(resp.ReturnData, &symbols); err != nil {
		return nil, eris.Wrap(err, "xtb: unmarshal symbols")
	}
	return symbols, nil
}

func (c *wsClient) Logout(ctx context.Context) error {
	_, err := c.execute(ctx, request{Command: "logout"})
	return err
}

func (c *wsClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return eris.Wrap(err, "xtb: close")
}

// execute sends one command and reads its reply. xAPI answers commands in
// order on the same connection, so calls are serialized.
func (c *wsClient) execute(ctx context.Context, req request) (*response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, eris.Errorf("xtb: %s: not connected", req.Command)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	if err := c.conn.WriteJSON(req); err != nil {
		return nil, eris.Wrapf(err, "xtb: send %s", req.Command)
	}

	var resp response
	if err := c.conn.ReadJSON(&resp); err != nil {
		return nil, eris.Wrapf(err, "xtb: read %s response", req.Command)
	}
	if !resp.Status {
		return nil, &APIError{Command: req.Command, Code: resp.ErrorCode, Descr: resp.ErrorDescr}
	}
	return &resp, nil
}
