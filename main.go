package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"MyLocalBoard/internal/client"
	"MyLocalBoard/internal/config"
	"MyLocalBoard/internal/export"
	lbnet "MyLocalBoard/internal/net"
	"MyLocalBoard/internal/protocol"
	"MyLocalBoard/internal/server"
	"MyLocalBoard/internal/state"
)

const discoverTimeout = 3 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "localboard:", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "localboard: logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case cfg.Discover:
		err = runDiscover(ctx, logger)
	case cfg.Link != "":
		err = runClient(ctx, cfg, logger)
	default:
		err = runHost(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("exiting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runHost(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger.Info("starting as host", zap.String("addr", cfg.Addr))

	rooms := state.NewRegistry(state.DefaultPalette, logger)
	hub := lbnet.NewHub(lbnet.Options{
		SendBuffer:      cfg.SendBuffer,
		MaxMessageBytes: cfg.MaxMessageBytes,
		CursorRate:      cfg.CursorRate,
	}, logger)
	dispatcher := protocol.NewDispatcher(rooms, hub, logger, protocol.WithSimplifyTolerance(cfg.SimplifyTolerance))
	srv := server.New(rooms, hub, dispatcher, logger)

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	if cfg.MDNS {
		advert, err := lbnet.Advertise(port)
		if err != nil {
			logger.Warn("mDNS advertising disabled", zap.Error(err))
		} else {
			defer func() { _ = advert.Shutdown() }()
		}
	}

	logger.Info("host listening",
		zap.Int("port", port),
		zap.String("share_link", lbnet.ShareLink(lbnet.GetOutgoingIP(), port, "default")),
	)

	httpServer := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Int("peers", hub.Count()), zap.Int("rooms", rooms.Count()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// Websocket connections are hijacked, so Shutdown does not wait for them.
	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runClient(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	wsURL, room, err := lbnet.ParseLink(cfg.Link)
	if err != nil {
		return err
	}
	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}
	logger.Info("starting as client", zap.String("url", wsURL), zap.String("room", room))

	c, err := client.Dial(ctx, wsURL, codec, logger)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.Join(ctx, room, cfg.Name); err != nil {
		return fmt.Errorf("join %s: %w", room, err)
	}
	self, _ := c.Replica().Self()
	logger.Info("joined",
		zap.String("user", self.ID),
		zap.String("color", self.Color),
		zap.Int("operations", len(c.Replica().Operations())),
	)

	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				logger.Info("disconnected from host")
				return writeReplica(cfg.PDF, c.Replica(), logger)
			}
			logEvent(logger, ev)
		case <-ctx.Done():
			return writeReplica(cfg.PDF, c.Replica(), logger)
		}
	}
}

func logEvent(logger *zap.Logger, ev protocol.Outbound) {
	switch m := ev.Data.(type) {
	case state.Operation:
		logger.Info(ev.Type, zap.String("op", m.ID), zap.String("author", m.UserName), zap.Int("points", len(m.Points)))
	case protocol.Undone:
		logger.Info(ev.Type, zap.String("op", m.OperationID))
	case protocol.PresenceJoined:
		logger.Info(ev.Type, zap.String("user", m.User.Name), zap.Int("users", len(m.Users)))
	case protocol.PresenceLeft:
		logger.Info(ev.Type, zap.String("user", m.UserID), zap.Int("users", len(m.Users)))
	case protocol.ErrorPayload:
		logger.Warn("rejected by host", zap.String("code", m.Code), zap.String("message", m.Message))
	case protocol.CursorMoved:
		logger.Debug(ev.Type, zap.String("user", m.UserID), zap.Float64("x", m.X), zap.Float64("y", m.Y))
	default:
		logger.Info(ev.Type)
	}
}

func writeReplica(path string, replica *client.Replica, logger *zap.Logger) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create pdf file: %w", err)
	}
	defer f.Close()
	ops := replica.Operations()
	if err := export.PDF(f, ops); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	logger.Info("board exported", zap.String("path", path), zap.Int("operations", len(ops)))
	return nil
}

func runDiscover(ctx context.Context, logger *zap.Logger) error {
	logger.Info("looking for boards on the local network", zap.Duration("timeout", discoverTimeout))
	found := 0
	err := lbnet.Browse(ctx, discoverTimeout, func(addr string) {
		found++
		host, portStr, _ := net.SplitHostPort(addr)
		port, _ := strconv.Atoi(portStr)
		fmt.Println(lbnet.ShareLink(host, port, "default"))
	})
	logger.Info("discovery finished", zap.Int("found", found))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
