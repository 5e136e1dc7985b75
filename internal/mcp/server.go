// Package mcp exposes the voice engine over a stdio JSON-RPC control surface
// so automation can drive joins, replays, and recordings without Discord
// commands. Clips produced here are exported to the local clip directory.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/clipback/discord-clip-bot/internal/audio"
	"github.com/clipback/discord-clip-bot/internal/engine"
)

// Server implements the control protocol over newline-delimited JSON-RPC.
type Server struct {
	engine  *engine.Coordinator
	clipDir string
	scanner *bufio.Scanner
	writer  *bufio.Writer
}

// NewServer creates a control server on stdin/stdout.
func NewServer(eng *engine.Coordinator, clipDir string) *Server {
	return newServer(eng, clipDir, os.Stdin, os.Stdout)
}

func newServer(eng *engine.Coordinator, clipDir string, r io.Reader, w io.Writer) *Server {
	return &Server{
		engine:  eng,
		clipDir: clipDir,
		scanner: bufio.NewScanner(r),
		writer:  bufio.NewWriter(w),
	}
}

// Start runs the message loop until the input closes or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	logrus.Info("Control server started")

	s.sendMessage(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "initialize",
		"params": map[string]interface{}{
			"protocolVersion": "0.1.0",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{
					"list": toolList(),
				},
			},
		},
	})

	for s.scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(s.scanner.Bytes(), &msg); err != nil {
			logrus.WithError(err).Debug("Error parsing control message")
			continue
		}
		s.handleMessage(ctx, msg)
	}
	return s.scanner.Err()
}

func toolList() []map[string]interface{} {
	guildArg := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"guildId": map[string]string{"type": "string"},
		},
		"required": []string{"guildId"},
	}

	return []map[string]interface{}{
		{
			"name":        "join_voice_channel",
			"description": "Join a Discord voice channel",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"guildId":   map[string]string{"type": "string"},
					"channelId": map[string]string{"type": "string"},
				},
				"required": []string{"guildId", "channelId"},
			},
		},
		{
			"name":        "leave_voice_channel",
			"description": "Leave the guild's voice channel",
			"inputSchema": guildArg,
		},
		{
			"name":        "list_sessions",
			"description": "List all live voice sessions",
		},
		{
			"name":        "replay",
			"description": "Save the last 30 seconds of audio as a WAV clip",
			"inputSchema": guildArg,
		},
		{
			"name":        "start_recording",
			"description": "Start an open-ended recording",
			"inputSchema": guildArg,
		},
		{
			"name":        "stop_recording",
			"description": "Stop the recording and save it as a WAV clip",
			"inputSchema": guildArg,
		},
	}
}

func (s *Server) handleMessage(ctx context.Context, msg map[string]interface{}) {
	method, ok := msg["method"].(string)
	if !ok {
		return
	}
	id, hasID := msg["id"]

	switch method {
	case "initialize":
		if hasID {
			s.sendResponse(id, map[string]interface{}{
				"protocolVersion": "0.1.0",
				"serverInfo": map[string]interface{}{
					"name":    "discord-clip-bot",
					"version": "0.1.0",
				},
			})
		}

	case "tools/call":
		params, ok := msg["params"].(map[string]interface{})
		if !ok {
			logrus.Warn("Invalid params in tools/call")
			return
		}
		toolName, ok := params["name"].(string)
		if !ok {
			logrus.Warn("Invalid tool name in tools/call")
			return
		}
		toolArgs, _ := params["arguments"].(map[string]interface{})

		result := s.executeTool(ctx, toolName, toolArgs)
		if hasID {
			s.sendResponse(id, result)
		}
	}
}

func (s *Server) executeTool(ctx context.Context, name string, args map[string]interface{}) interface{} {
	switch name {
	case "join_voice_channel":
		guildID, ok := stringArg(args, "guildId")
		if !ok {
			return errorResult("missing or invalid 'guildId' parameter")
		}
		channelID, ok := stringArg(args, "channelId")
		if !ok {
			return errorResult("missing or invalid 'channelId' parameter")
		}
		if err := s.engine.Connect(ctx, guildID, channelID); err != nil {
			return errorResult(err.Error())
		}
		return map[string]interface{}{"success": true, "message": "Joined voice channel"}

	case "leave_voice_channel":
		guildID, ok := stringArg(args, "guildId")
		if !ok {
			return errorResult("missing or invalid 'guildId' parameter")
		}
		if err := s.engine.Disconnect(guildID); err != nil {
			return errorResult(err.Error())
		}
		return map[string]interface{}{"success": true, "message": "Left voice channel"}

	case "list_sessions":
		return map[string]interface{}{"sessions": s.engine.Sessions()}

	case "replay":
		guildID, ok := stringArg(args, "guildId")
		if !ok {
			return errorResult("missing or invalid 'guildId' parameter")
		}
		clip, err := s.engine.Replay(guildID)
		if err != nil {
			return errorResult(err.Error())
		}
		return s.exportClip(clip)

	case "start_recording":
		guildID, ok := stringArg(args, "guildId")
		if !ok {
			return errorResult("missing or invalid 'guildId' parameter")
		}
		if err := s.engine.StartRecording(guildID); err != nil {
			return errorResult(err.Error())
		}
		return map[string]interface{}{"success": true, "message": "Recording started"}

	case "stop_recording":
		guildID, ok := stringArg(args, "guildId")
		if !ok {
			return errorResult("missing or invalid 'guildId' parameter")
		}
		clip, err := s.engine.StopRecording(guildID)
		if err != nil {
			return errorResult(err.Error())
		}
		return s.exportClip(clip)

	default:
		return errorResult(fmt.Sprintf("unknown tool: %s", name))
	}
}

// exportClip writes a clip into the clip directory and reports its path.
func (s *Server) exportClip(clip *audio.Clip) interface{} {
	if err := os.MkdirAll(s.clipDir, 0o750); err != nil {
		return errorResult(fmt.Sprintf("creating clip directory: %v", err))
	}
	path := filepath.Join(s.clipDir, clip.Filename())
	if err := os.WriteFile(path, clip.Data, 0o640); err != nil {
		return errorResult(fmt.Sprintf("writing clip: %v", err))
	}

	logrus.WithFields(logrus.Fields{
		"filepath": path,
		"duration": clip.Duration.String(),
		"size":     clip.Size(),
	}).Info("Clip exported")

	return map[string]interface{}{
		"filepath": path,
		"duration": clip.Duration.String(),
		"size":     clip.Size(),
	}
}

func stringArg(args map[string]interface{}, key string) (string, bool) {
	if args == nil {
		return "", false
	}
	val, ok := args[key].(string)
	return val, ok
}

func errorResult(msg string) interface{} {
	return map[string]interface{}{"error": msg}
}

func (s *Server) sendMessage(msg map[string]interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal control message")
		return
	}
	if _, err := s.writer.Write(data); err != nil {
		logrus.WithError(err).Error("Failed to write control message")
		return
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		logrus.WithError(err).Error("Failed to write control message")
		return
	}
	if err := s.writer.Flush(); err != nil {
		logrus.WithError(err).Error("Failed to flush control message")
	}
}

func (s *Server) sendResponse(id interface{}, result interface{}) {
	s.sendMessage(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}
