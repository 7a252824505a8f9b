package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/fslexpress/golang_services/internal/asset_search_service/adapters/cloudinary"
	searchapp "github.com/fslexpress/golang_services/internal/asset_search_service/app"
	classapp "github.com/fslexpress/golang_services/internal/classification_service/app"
	httptransport "github.com/fslexpress/golang_services/internal/gateway_service/transport/http"
	mailapp "github.com/fslexpress/golang_services/internal/mail_delivery_service/app"
	maildomain "github.com/fslexpress/golang_services/internal/mail_delivery_service/domain"
	"github.com/fslexpress/golang_services/internal/mail_delivery_service/provider"
	"github.com/fslexpress/golang_services/internal/platform/config"
	"github.com/fslexpress/golang_services/internal/platform/logger"
	"github.com/fslexpress/golang_services/internal/platform/messagebroker"
)

const serviceName = "gateway_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Gateway service starting...", "port", cfg.ServerPort, "env", cfg.AppEnv)

	mailLogger := appLogger
	if cfg.MailDebug() {
		mailLogger = logger.New("debug").With("service", serviceName)
		mailLogger.Debug("SMTP debug logging enabled")
	}

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	// Audit events
	publisher, err := messagebroker.NewPublisher(messagebroker.PublisherConfig{
		Broker:       cfg.AuditBroker,
		AppName:      serviceName,
		NATSURL:      cfg.NATSUrl,
		KafkaBrokers: cfg.KafkaBrokerList(),
	}, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect audit broker, audit events disabled", "broker", cfg.AuditBroker, "error", err)
		publisher = messagebroker.NoopPublisher{}
	}
	defer publisher.Close()

	// Mail delivery
	channels, err := provider.BuildChannels(cfg, mailLogger, &http.Client{Timeout: cfg.SendTimeout() + 5*time.Second})
	if err != nil {
		appLogger.Error("Invalid mail channel configuration", "error", err)
		os.Exit(1)
	}
	orchestrator := mailapp.NewOrchestrator(channels, mailLogger,
		mailapp.WithAuditPublisher(mailapp.NewAuditPublisher(publisher, cfg.AuditTopic, appLogger)))
	if active := orchestrator.ActiveChannels(); len(active) == 0 {
		appLogger.Warn("No email channel is configured; OTP requests will fail", "channels", orchestrator.Channels())
	} else {
		appLogger.Info("Email channels ready", "order", orchestrator.Channels(), "active", active)
	}
	sender := maildomain.Sender{Name: cfg.FromName, Address: cfg.SenderAddress()}
	otpService := mailapp.NewOTPService(orchestrator, sender, cfg.OTPSubject, appLogger)

	// Asset search
	cloudinaryClient := cloudinary.NewClient(cloudinary.Config{
		BaseURL:   cfg.CloudinaryBaseURL,
		CloudName: cfg.CloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
	}, nil, appLogger)
	searchService := searchapp.NewSearchService(cloudinaryClient, cfg.CloudinaryFolder, appLogger)

	// Classification
	modelCache := classapp.NewModelCache(classapp.ModelSpecs(cfg.ModelsDir, cfg.ModelNameList()), classapp.RuntimeLoader, appLogger)
	classifier := classapp.NewClassifier(modelCache, appLogger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		RequestTimeout:    cfg.RequestTimeout(),
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	},
		httptransport.NewHealthHandler(time.Now(), appLogger),
		httptransport.NewSearchHandler(searchService, appLogger),
		httptransport.NewOTPHandler(otpService, validator.New(),
			httptransport.NewRateLimiter(mainCtx, cfg.OTPRateLimitRPS, cfg.OTPRateLimitBurst), appLogger),
		httptransport.NewPredictHandler(classifier, cfg.MaxUploadBytes, appLogger),
	)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server listening", "address", httpServer.Addr)
		// Credential lengths only, never values.
		appLogger.Info("Mail credentials",
			"smtp_user_len", len(cfg.SMTPUser),
			"smtp_pass_len", len(cfg.SMTPPass),
			"brevo_api_key_len", len(cfg.BrevoAPIKey),
			"sendgrid_api_key_len", len(cfg.SendGridAPIKey),
			"from_email", fromEmailForLog(cfg.FromEmail))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server failed to serve", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := modelCache.Warm(groupCtx); err != nil && groupCtx.Err() == nil {
			appLogger.Warn("Some models failed to preload; they will be retried on first request", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		stopSignal := make(chan os.Signal, 1)
		signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignal)
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
		case <-groupCtx.Done():
		}
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Shutting down HTTP server...")
		ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(ctxShutdown); err != nil {
			appLogger.Error("HTTP server shutdown failed", "error", err)
			return err
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error("Gateway service stopped with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Gateway service shut down.")
}

func fromEmailForLog(v string) string {
	if v == "" {
		return "(not set, will use SMTP_USER)"
	}
	return v
}
