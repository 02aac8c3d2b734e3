package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/boids/internal/core/simulation"
	"github.com/zeusync/boids/internal/core/systems/physics"
)

func dialWS(t *testing.T, env *testEnv, header http.Header) *websocket.Conn {
	t.Helper()
	u := "ws://" + env.srv.Addr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) simulation.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f simulation.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readMessage(t *testing.T, conn *websocket.Conn) (*simulation.Frame, *AgentMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	frame, ev, err := DecodeViewerMessage(b)
	require.NoError(t, err)
	return frame, ev
}

func TestWebSocketStreamsFrames(t *testing.T) {
	env := startServer(t, testServerConfig())
	conn := dialWS(t, env, nil)
	env.waitViewers(t, 1)

	env.publish(t, testFrame(1, 0.1))
	f := readFrame(t, conn)
	assert.Equal(t, uint64(1), f.Tick)
	require.Len(t, f.Agents, 1)
	assert.Equal(t, "red", f.Agents[0].Name)
	assert.Equal(t, redID, f.Agents[0].ID)
	assert.Equal(t, physics.Vec3(0.1, 0, 0), f.Agents[0].Location)

	// same state on a later tick is suppressed
	env.publish(t, testFrame(2, 0.1))
	env.publish(t, testFrame(3, 0.2))
	f = readFrame(t, conn)
	assert.Equal(t, uint64(3), f.Tick)
}

func TestWebSocketLateViewerGetsLastFrame(t *testing.T) {
	env := startServer(t, testServerConfig())
	env.publish(t, testFrame(5, 1))

	conn := dialWS(t, env, nil)
	f := readFrame(t, conn)
	assert.Equal(t, uint64(5), f.Tick)
}

func TestWebSocketControlMessages(t *testing.T) {
	env := startServer(t, testServerConfig())
	conn := dialWS(t, env, nil)
	env.waitViewers(t, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "teleport"}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTarget}))

	target := physics.Vec3(12, -3, 4)
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTarget, Target: &target}))
	require.Eventually(t, func() bool { return env.targets.Get() == target }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessagePause}))
	require.Eventually(t, env.control.Paused, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageResume}))
	require.Eventually(t, func() bool { return !env.control.Paused() }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, env.srv.Viewers(), "bad messages do not drop the viewer")
}

func TestWebSocketDisconnectRemovesViewer(t *testing.T) {
	env := startServer(t, testServerConfig())
	conn := dialWS(t, env, nil)
	env.waitViewers(t, 1)

	require.NoError(t, conn.Close())
	env.waitViewers(t, 0)
}

func TestWebSocketOriginCheck(t *testing.T) {
	cfg := testServerConfig()
	cfg.AllowedOrigins = []string{"http://viewer.local"}
	env := startServer(t, cfg)
	u := "ws://" + env.srv.Addr().String() + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": {"http://evil.local"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dialWS(t, env, http.Header{"Origin": {"http://viewer.local"}})
	assert.NotNil(t, conn)
}

func TestHandleClientMessageErrors(t *testing.T) {
	env := startServer(t, testServerConfig())

	assert.ErrorIs(t, env.srv.handleClientMessage([]byte("{")), ErrInvalidMessage)
	assert.ErrorIs(t, env.srv.handleClientMessage([]byte(`{"type":"jump"}`)), ErrInvalidMessage)
	err := env.srv.handleClientMessage([]byte(`{"type":"target"}`))
	assert.True(t, strings.Contains(err.Error(), "without target"))
	assert.NoError(t, env.srv.handleClientMessage([]byte(`{"type":"target","target":{"x":1,"y":2,"z":3}}`)))
	assert.Equal(t, physics.Vec3(1, 2, 3), env.targets.Get())
}
