package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"estore/api/internal/account"
	"estore/api/internal/admin"
	"estore/api/internal/checkout"
	"estore/api/internal/config"
	"estore/api/internal/db"
	"estore/api/internal/httpapi"
	"estore/api/internal/invoice"
	"estore/api/internal/logger"
	"estore/api/internal/monitor"
	"estore/api/internal/notify"
	"estore/api/internal/payment"
	"estore/api/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("erro ao carregar configuração: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, "estore-api", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatalf("erro ao configurar tracing: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Fatalf("erro ao criar diretório de dados: %v", err)
	}

	sqlite, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatalf("erro ao abrir banco de dados: %v", err)
	}
	defer sqlite.Close()

	if err := db.Migrate(sqlite); err != nil {
		logger.Fatalf("erro ao executar migrações: %v", err)
	}

	sink, err := notify.New(cfg)
	if err != nil {
		logger.Fatalf("erro ao configurar notificações: %v", err)
	}
	defer sink.Close()

	// Engine
	recorder := payment.NewRecorder(sqlite, sink, time.Now)
	gateway := payment.NewSimulatedGateway(
		cfg.Payment.CreditApprovalRate,
		cfg.Payment.DebitApprovalRate,
		500*time.Millisecond,
		nil,
		time.Now,
	)
	processor := payment.NewProcessor(sqlite, cfg.Payment, gateway, recorder, time.Now, nil)
	checkoutSvc := checkout.NewService(sqlite, recorder)
	invoices := invoice.NewGenerator(sqlite, cfg.Payment, time.Now)
	adminMgr := admin.NewManager(sqlite, processor)
	accounts := account.NewService(sqlite, cfg.JWTSecret, cfg.JWTTTL, time.Now)

	if cfg.MonitorInterval > 0 {
		mon := monitor.New(sqlite, processor, time.Now)
		go mon.Run(ctx, cfg.MonitorInterval)
		logger.Infof("monitor de pagamentos ativo (intervalo %s)", cfg.MonitorInterval)
	} else {
		logger.Warnf("MONITOR_INTERVAL=0: expiração automática de PIX/boleto desabilitada")
	}
	if cfg.WebhookSecret == "" {
		logger.Warnf("WEBHOOK_SECRET não definido, assinatura do webhook não será verificada")
	}

	server := httpapi.NewServer(httpapi.Deps{
		DB:       sqlite,
		Config:   cfg,
		Accounts: accounts,
		Checkout: checkoutSvc,
		Payments: processor,
		Invoices: invoices,
		Admin:    adminMgr,
	})

	addr := net.JoinHostPort("0.0.0.0", cfg.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.L().Handler(), slog.LevelError),
	}

	logger.Infof("servidor HTTP escutando em %s", addr)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("erro no servidor: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("encerrando...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("erro ao encerrar servidor: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Errorf("erro ao encerrar tracing: %v", err)
	}
	logger.Infof("servidor parado")
}
