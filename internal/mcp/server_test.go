package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipback/discord-clip-bot/internal/audio"
	"github.com/clipback/discord-clip-bot/internal/engine"
	"github.com/clipback/discord-clip-bot/internal/playback"
)

// stubConn is a minimal engine.Conn whose frame feed the test controls.
type stubConn struct {
	frames chan audio.Frame
}

func (c *stubConn) Frames() <-chan audio.Frame                 { return c.frames }
func (c *stubConn) Speaking(bool) error                        { return nil }
func (c *stubConn) SendOpus(_ context.Context, _ []byte) error { return nil }
func (c *stubConn) Close() error                               { close(c.frames); return nil }

type stubTransport struct {
	last *stubConn
}

func (t *stubTransport) Join(_ context.Context, _, _ string) (engine.Conn, error) {
	t.last = &stubConn{frames: make(chan audio.Frame, 16)}
	return t.last, nil
}

// runServer feeds the input script through a fresh server and returns the
// engine plus every message it wrote.
func runServer(t *testing.T, clipDir, input string) (*engine.Coordinator, []map[string]interface{}) {
	t.Helper()

	eng := engine.New(&stubTransport{}, playback.NewEncoderPool(), engine.DefaultConfig())
	t.Cleanup(eng.Shutdown)

	var out bytes.Buffer
	srv := newServer(eng, clipDir, strings.NewReader(input), &out)
	require.NoError(t, srv.Start(context.Background()))

	var messages []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &msg))
		messages = append(messages, msg)
	}
	return eng, messages
}

func call(id int, tool string, args map[string]interface{}) string {
	msg := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      tool,
			"arguments": args,
		},
	}
	data, _ := json.Marshal(msg)
	return string(data) + "\n"
}

// resultByID finds the response with the given request id.
func resultByID(t *testing.T, messages []map[string]interface{}, id int) map[string]interface{} {
	t.Helper()
	for _, msg := range messages {
		if got, ok := msg["id"].(float64); ok && int(got) == id {
			result, ok := msg["result"].(map[string]interface{})
			require.True(t, ok, "response %d carries no result object", id)
			return result
		}
	}
	t.Fatalf("no response with id %d", id)
	return nil
}

func TestServerAnnouncesTools(t *testing.T) {
	_, messages := runServer(t, t.TempDir(), "")

	require.NotEmpty(t, messages)
	first := messages[0]
	assert.Equal(t, "initialize", first["method"])

	data, _ := json.Marshal(first)
	for _, tool := range []string{
		"join_voice_channel", "leave_voice_channel", "list_sessions",
		"replay", "start_recording", "stop_recording",
	} {
		assert.Contains(t, string(data), tool)
	}
}

func TestServerInitializeHandshake(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n"
	_, messages := runServer(t, t.TempDir(), input)

	result := resultByID(t, messages, 1)
	assert.Equal(t, "0.1.0", result["protocolVersion"])
}

func TestServerJoinAndListSessions(t *testing.T) {
	input := call(1, "join_voice_channel", map[string]interface{}{
		"guildId": "guild-1", "channelId": "voice-1",
	}) + call(2, "list_sessions", nil)

	eng, messages := runServer(t, t.TempDir(), input)

	join := resultByID(t, messages, 1)
	assert.Equal(t, true, join["success"])

	list := resultByID(t, messages, 2)
	sessions, ok := list["sessions"].([]interface{})
	require.True(t, ok)
	require.Len(t, sessions, 1)

	st, err := eng.Status("guild-1")
	require.NoError(t, err)
	assert.Equal(t, "connected", st.State)
}

func TestServerArgumentValidation(t *testing.T) {
	input := call(1, "join_voice_channel", map[string]interface{}{"guildId": "guild-1"}) +
		call(2, "replay", nil) +
		call(3, "bogus_tool", nil)

	_, messages := runServer(t, t.TempDir(), input)

	assert.Contains(t, resultByID(t, messages, 1)["error"], "channelId")
	assert.Contains(t, resultByID(t, messages, 2)["error"], "guildId")
	assert.Contains(t, resultByID(t, messages, 3)["error"], "unknown tool")
}

func TestServerReplayRequiresSession(t *testing.T) {
	input := call(1, "replay", map[string]interface{}{"guildId": "guild-1"})
	_, messages := runServer(t, t.TempDir(), input)

	result := resultByID(t, messages, 1)
	assert.NotEmpty(t, result["error"])
}

func TestServerRecordingExportsClip(t *testing.T) {
	clipDir := t.TempDir()
	input := call(1, "join_voice_channel", map[string]interface{}{
		"guildId": "guild-1", "channelId": "voice-1",
	}) + call(2, "start_recording", map[string]interface{}{"guildId": "guild-1"}) +
		call(3, "stop_recording", map[string]interface{}{"guildId": "guild-1"})

	_, messages := runServer(t, clipDir, input)

	result := resultByID(t, messages, 3)
	require.NotContains(t, result, "error", "stop_recording failed: %v", result["error"])

	path, ok := result["filepath"].(string)
	require.True(t, ok)
	assert.Equal(t, clipDir, filepath.Dir(path))
	assert.Regexp(t, `^\d+\.wav$`, filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	_, rate, channels, err := audio.DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, audio.SampleRate, rate)
	assert.Equal(t, audio.Channels, channels)
}
