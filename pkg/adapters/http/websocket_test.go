package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/formbot"
	"github.com/aretw0/formbot/internal/testutils"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func dialWS(t *testing.T, ctx context.Context, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, wsURL(srv, query), nil)
	require.NoError(t, err)
	return conn
}

func dialWSAs(t *testing.T, ctx context.Context, srv *httptest.Server, userID, secret string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, wsURL(srv, "?user_id="+userID), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {basicAuth(userID, secret)}},
	})
	require.NoError(t, err)
	return conn
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) wsOutbound {
	t.Helper()
	var out wsOutbound
	require.NoError(t, wsjson.Read(ctx, conn, &out))
	return out
}

func TestWebsocket_FormConversation(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bot := testutils.NewBot(t)
	srv := httptest.NewServer(NewHandler(bot))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bot.Register(ctx, "u1", "Jane", "s3cret"))

	conn := dialWSAs(t, ctx, srv, "u1", "s3cret")
	defer conn.CloseNow()

	welcome := readFrame(t, ctx, conn)
	assert.Equal(t, wsWelcome, welcome.Type)
	assert.Equal(t, "u1", welcome.UserID)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: wsStart, FormID: "survey"}))
	intro := readFrame(t, ctx, conn)
	assert.Equal(t, wsMessage, intro.Type)
	assert.Equal(t, "I'm collecting information for Quick Survey. What's your email address?", intro.Text)

	// Plain text frames are answers.
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not an email")))
	retry := readFrame(t, ctx, conn)
	assert.Equal(t, "That doesn't look like a valid email address. Please enter a valid email address.", retry.Text)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: wsMessage, Text: "jane@example.com"}))
	assert.Equal(t, "Are you happy with the service?", readFrame(t, ctx, conn).Text)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: wsCancel}))
	cancelled := readFrame(t, ctx, conn)
	assert.Equal(t, wsCancelled, cancelled.Type)
	assert.Equal(t, "session_1", cancelled.SessionID)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: wsCancel}))
	noSession := readFrame(t, ctx, conn)
	assert.Equal(t, wsError, noSession.Type)
	assert.Equal(t, "You don't have a form in progress. Start one to begin.", noSession.Text)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

func TestWebsocket_Errors(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, srv, "")
	defer conn.CloseNow()

	welcome := readFrame(t, ctx, conn)
	assert.True(t, strings.HasPrefix(welcome.UserID, "ws:"), welcome.UserID)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: wsStart, FormID: "missing"}))
	unknown := readFrame(t, ctx, conn)
	assert.Equal(t, wsError, unknown.Type)
	assert.Equal(t, "I couldn't find that form. Please check the form name and try again.", unknown.Text)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: "bogus"}))
	assert.Equal(t, "unknown frame type bogus", readFrame(t, ctx, conn).Text)

	// No session and no generator: free chat is unavailable.
	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: wsMessage, Text: "hello"}))
	unavailable := readFrame(t, ctx, conn)
	assert.Equal(t, wsMessage, unavailable.Type)
	assert.Equal(t, "I can't chat right now. Please try again later.", unavailable.Text)
}

func TestWebsocket_ChatMirrorsToStream(t *testing.T) {
	gen := &testutils.Generator{Reply: "Hi there"}
	server := NewServer(testutils.NewBot(t, formbot.WithGenerator(gen)))
	srv := httptest.NewServer(server.Routes())
	defer srv.Close()

	events, unsubscribe := server.Streams().Subscribe("ws:u7")
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, srv, "?user_id=ws:u7")
	defer conn.CloseNow()
	readFrame(t, ctx, conn)

	require.NoError(t, wsjson.Write(ctx, conn, wsInbound{Type: wsMessage, Text: "hello"}))
	assert.Equal(t, "Hi there", readFrame(t, ctx, conn).Text)

	select {
	case ev := <-events:
		assert.JSONEq(t, `{"type":"message","text":"Hi there"}`, ev)
	case <-ctx.Done():
		t.Fatal("no stream event")
	}
}

func TestWebsocket_NamedUserNeedsCredentials(t *testing.T) {
	bot := testutils.NewBot(t)
	srv := httptest.NewServer(NewHandler(bot))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, bot.Register(ctx, "u1", "Jane", "s3cret"))

	_, resp, err := websocket.Dial(ctx, wsURL(srv, "?user_id=u1"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.Dial(ctx, wsURL(srv, "?user_id=u1"), &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {basicAuth("u1", "wrong")}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
