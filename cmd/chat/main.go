package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/Kanskikuro/dat640-project/internal/config"
	"github.com/Kanskikuro/dat640-project/internal/playlist"
	"github.com/Kanskikuro/dat640-project/internal/protocol"
	"github.com/Kanskikuro/dat640-project/internal/transport"
	"github.com/Kanskikuro/dat640-project/internal/ui"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	app := &cli.Command{
		Name:    "musiccrs-chat",
		Usage:   "Chat with the MusicCRS playlist agent",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Websocket URL of the MusicCRS server (overrides config)",
			},
			&cli.StringFlag{
				Name:    "user",
				Aliases: []string{"u"},
				Usage:   "Chat display name (overrides config)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a default config.toml",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return config.CreateConfigFile(cmd.String("config"))
				},
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

func loadConfig(cmd *cli.Command) *config.Config {
	cfg := config.DefaultConfig()
	path := cmd.String("config")
	if _, err := os.Stat(path); err == nil {
		if loaded, err := config.LoadConfig(path); err == nil {
			cfg = loaded
		}
	}
	if url := cmd.String("server"); url != "" {
		cfg.Server.URL = url
	}
	if user := cmd.String("user"); user != "" {
		cfg.Chat.Username = user
	}
	return cfg
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := loadConfig(cmd)
	if lvl, err := log.ParseLevel(cfg.UI.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	sock, err := transport.Dial(cfg.Server.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.Server.URL, err)
	}
	defer sock.Close()

	// Inbound traffic is relayed into the program through channels: the
	// socket dispatches on its own goroutine, and sending to a program
	// that has not started yet would block it. Snapshots coalesce to the
	// latest one; chat messages queue.
	states := make(chan playlist.State, 1)
	chats := make(chan protocol.ChatMessage, 64)

	unsubChat := sock.On(protocol.EventChat, func(raw json.RawMessage) {
		var msg protocol.ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		select {
		case chats <- msg:
		default:
		}
	})
	defer unsubChat()

	engine := playlist.New(sock, func(st playlist.State) {
		for {
			select {
			case states <- st:
				return
			default:
				select {
				case <-states:
				default:
				}
			}
		}
	})
	defer engine.Close()

	model := ui.NewModel(engine, sock, cfg.Chat.Username, cfg.UI.ShowCounts)
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		for {
			select {
			case st := <-states:
				p.Send(ui.StateMsg(st))
			case msg := <-chats:
				p.Send(ui.InboundChatMsg(msg))
			case <-sock.Done():
				p.Send(ui.DisconnectedMsg{Err: transport.ErrClosed})
				return
			}
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
