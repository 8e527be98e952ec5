package xtb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers xAPI commands from a canned table.
func fakeServer(t *testing.T, replies map[string]string, seen chan<- request) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close() //nolint:errcheck
		for {
			var req struct {
				Command   string          `json:"command"`
				Arguments json.RawMessage `json:"arguments"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if seen != nil {
				var args map[string]string
				_ = json.Unmarshal(req.Arguments, &args)
				seen <- request{Command: req.Command, Arguments: args}
			}
			reply, ok := replies[req.Command]
			if !ok {
				reply = `{"status":false,"errorCode":"EX000","errorDescr":"unknown command"}`
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_LoginSymbolsLogout(t *testing.T) {
	seen := make(chan request, 3)
	url := fakeServer(t, map[string]string{
		"login": `{"status":true,"streamSessionId":"abc"}`,
		"getAllSymbols": `{"status":true,"returnData":[
			{"symbol":"SAP.DE_9","description":"SAP SE (EUR)","categoryName":"STC","currency":"EUR"},
			{"symbol":"EURUSD","description":"Euro to US Dollar","categoryName":"FX","currency":"USD"}
		]}`,
		"logout": `{"status":true}`,
	}, seen)

	c := NewClient(WithURL(url), WithTimeout(5*time.Second))
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "12345", "pw"))
	login := <-seen
	assert.Equal(t, "login", login.Command)
	assert.Equal(t, map[string]string{"userId": "12345", "password": "pw"}, login.Arguments)

	symbols, err := c.GetAllSymbols(ctx)
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "SAP.DE_9", symbols[0].Symbol)
	assert.Equal(t, "STC", symbols[0].CategoryName)
	assert.Equal(t, "FX", symbols[1].CategoryName)

	require.NoError(t, c.Logout(ctx))
}

func TestClient_LoginRejected(t *testing.T) {
	url := fakeServer(t, map[string]string{
		"login": `{"status":false,"errorCode":"BE005","errorDescr":"userPasswordCheck: Invalid login or password"}`,
	}, nil)

	c := NewClient(WithURL(url))
	t.Cleanup(func() { _ = c.Close() })

	err := c.Login(context.Background(), "12345", "wrong")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "BE005", apiErr.Code)
	assert.Contains(t, err.Error(), "login rejected")
}

func TestClient_DialError(t *testing.T) {
	c := NewClient(WithURL("ws://127.0.0.1:1"))

	err := c.Login(context.Background(), "u", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xtb: dial")
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient()

	_, err := c.GetAllSymbols(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
	assert.NoError(t, c.Close())
}

func TestClient_MalformedSymbols(t *testing.T) {
	url := fakeServer(t, map[string]string{
		"login":         `{"status":true}`,
		"getAllSymbols": `{"status":true,"returnData":{"not":"a list"}}`,
	}, nil)

	c := NewClient(WithURL(url))
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Login(context.Background(), "u", "p"))
	_, err := c.GetAllSymbols(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal symbols")
}
