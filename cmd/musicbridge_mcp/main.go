package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dgnsrekt/musicbridge/internal/bridge"
	"github.com/dgnsrekt/musicbridge/internal/cdpcontrol"
	"github.com/dgnsrekt/musicbridge/internal/config"
	"github.com/dgnsrekt/musicbridge/internal/hint"
	"github.com/dgnsrekt/musicbridge/internal/logging"
	"github.com/dgnsrekt/musicbridge/internal/router"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol.
	if err := logging.Setup(cfg.LogLevel, cfg.LogFile, false); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	cdpClient := cdpcontrol.NewClient(cfg.CDPURL(), cfg.EvalTimeout())
	if err := cdpClient.Connect(context.Background()); err != nil {
		slog.Error("failed to connect CDP", "cdp_url", cfg.CDPURL(), "error", err)
		fmt.Fprintf(os.Stderr, "cdp: %v\n", err)
		os.Exit(1)
	}
	defer cdpClient.Close()

	opts := []router.Option{router.WithRelayTimeout(cfg.RelayTimeout())}
	if cfg.HintFile != "" {
		hints, err := hint.NewStore(cfg.HintFile)
		if err != nil {
			slog.Warn("hint store unavailable", "path", cfg.HintFile, "error", err)
		} else {
			opts = append(opts, router.WithHints(hints))
		}
	}
	rt := router.New(router.CDP(cdpClient), router.NewState(), opts...)
	defer rt.Close()

	s := server.NewMCPServer(
		"musicbridge",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)
	registerTools(s, rt)

	slog.Info("musicbridge mcp serving on stdio", "cdp_url", cfg.CDPURL())
	if err := server.ServeStdio(s); err != nil {
		slog.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}

// player is the router surface the tools need.
type player interface {
	State(ctx context.Context) bridge.StateReply
	Queue(ctx context.Context) *bridge.QueueSnapshot
	Command(ctx context.Context, cmd bridge.Command) bridge.CommandResult
	OpenOrSwitch(ctx context.Context) error
}

func registerTools(s *server.MCPServer, p player) {
	verbs := make([]string, 0, len(bridge.Verbs()))
	for _, v := range bridge.Verbs() {
		verbs = append(verbs, string(v))
	}

	s.AddTool(mcp.NewTool("now_playing",
		mcp.WithDescription("Report the track playing in the active music tab (YouTube Music, Spotify or Amazon Music)"),
	), nowPlayingHandler(p))

	s.AddTool(mcp.NewTool("queue",
		mcp.WithDescription("List the visible play queue of the active music tab"),
	), queueHandler(p))

	s.AddTool(mcp.NewTool("send_command",
		mcp.WithDescription("Control playback in the active music tab"),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("One of: "+strings.Join(verbs, ", ")),
			mcp.Enum(verbs...),
		),
		mcp.WithNumber("value",
			mcp.Description("Seconds for seekTo, percent for setVolume, zero-based queue index for playAt"),
		),
	), sendCommandHandler(p))

	s.AddTool(mcp.NewTool("open_music",
		mcp.WithDescription("Switch to the open music tab, or open the last used service"),
	), openMusicHandler(p))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func nowPlayingHandler(p player) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st := p.State(ctx)
		if !st.Connected {
			return mcp.NewToolResultText("No music tab is playing."), nil
		}
		return jsonResult(st)
	}
}

func queueHandler(p player) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := p.Queue(ctx)
		if q == nil {
			return mcp.NewToolResultText("No queue available."), nil
		}
		return jsonResult(q)
	}
}

func sendCommandHandler(p player) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("command")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid command parameter: %v", err)), nil
		}
		cmd := bridge.NewCommand(bridge.Verb(name))
		if args := request.GetArguments(); args != nil {
			if _, ok := args["value"]; ok {
				cmd = bridge.NewCommandValue(cmd.Verb, request.GetFloat("value", 0))
			}
		}

		res := p.Command(ctx, cmd)
		if !res.OK {
			return mcp.NewToolResultError(fmt.Sprintf("Command %s failed: %s", cmd, res.Error)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Sent %s", cmd)), nil
	}
}

func openMusicHandler(p player) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := p.OpenOrSwitch(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Open music failed: %v", err)), nil
		}
		return mcp.NewToolResultText("Music tab is in front."), nil
	}
}
