package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/giglink/chat-service/config"
	"github.com/giglink/chat-service/internal/changefeed"
	"github.com/giglink/chat-service/internal/postgres"
	"github.com/giglink/chat-service/internal/service"
	httpx "github.com/giglink/chat-service/internal/transport/http"
	"github.com/giglink/chat-service/internal/transport/ws"
	"github.com/giglink/chat-service/internal/typing"
	"github.com/giglink/chat-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting chat-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.Postgres.DSN,
		ApplicationName: cfg.Logging.Service,
	})
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// --- repos ---
	convRepo := postgres.NewConversationRepository(pool)
	msgRepo := postgres.NewMessageRepository(pool)

	// --- services ---
	convSvc := service.NewConversationService(convRepo)
	msgSvc := service.NewMessageService(msgRepo, convRepo)
	msgSvc.SetMaxMessageLen(cfg.Chat.MaxMessageLen)

	// --- typing presence (process-local) ---
	typingStore := typing.NewStore(cfg.Chat.TypingTTLDuration())

	// --- change feed: pg LISTEN -> bridge -> подписчики stream/ws ---
	bridge := changefeed.NewBridge(msgRepo, cfg.Chat.SubscriberBacklog)
	listener := changefeed.NewListener(pool, bridge, postgres.NotifyChannel,
		cfg.Chat.ListenReconnectDuration())

	// --- transports ---
	wsServer := ws.NewServer(convSvc, typingStore, msgSvc, bridge)
	handler := httpx.NewHandler(convSvc, msgSvc, typingStore)
	streamHandler := httpx.NewStreamHandler(convSvc, bridge, cfg.Chat.StreamHeartbeatDuration())
	router := httpx.NewRouter(handler, streamHandler, wsServer)

	httpSrv := &http.Server{
		Addr:        cfg.HTTP.Addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// WriteTimeout не ставим: SSE-поток живёт дольше любого таймаута,
		// короткие маршруты ограничены chi Timeout
		IdleTimeout: 60 * time.Second,
		// контексты запросов наследуют ctx: cancel() закрывает все stream-циклы
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	// отмена контекста рвёт listener и все открытые stream-циклы
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
