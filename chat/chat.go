package chat

import (
	"context"
	"log/slog"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/loggerd/config"
	"github.com/onnwee/loggerd/logfile"
	"github.com/onnwee/loggerd/telemetry"
)

// StartChatRecorder connects to the configured IRC endpoint, joins the
// configured channels, and appends every public message to that channel's day
// file. An append failure loses at most that one line; it never disconnects
// the client or stops the process.
func StartChatRecorder(ctx context.Context, store *logfile.Store, cfg *config.Config) {
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Info("irc creds not set; skipping chat recorder", slog.Any("reason", err))
		return
	}
	client := twitch.NewClient(cfg.IRCNick, cfg.IRCPass)
	if cfg.IRCAddr != "" {
		client.IrcAddress = cfg.IRCAddr
		client.TLS = cfg.IRCTLS
	}

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		line := StripFormatting(msg.Message)
		if err := store.Append(msg.Channel, msg.User.Name, line, time.Now()); err != nil {
			telemetry.AppendFailures.Inc()
			slog.Error("failed to append chat line", slog.Any("err", err), slog.String("channel", msg.Channel))
			return
		}
		telemetry.MessagesLogged.Inc()
	})
	client.OnConnect(func() {
		slog.Info("connected to irc", slog.String("addr", cfg.IRCAddr), slog.Any("channels", cfg.Channels))
	})

	// Handle context cancellation by closing the client
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		client.Disconnect()
		close(done)
	}()

	client.Join(cfg.Channels...)
	if err := client.Connect(); err != nil {
		slog.Error("irc connect error", slog.Any("err", err))
	}
	<-done
}
