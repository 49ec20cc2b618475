package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netsentry/internal/alert"
	"netsentry/internal/anomaly"
	"netsentry/internal/api"
	"netsentry/internal/capture"
	"netsentry/internal/geoip"
	"netsentry/internal/metrics"
	"netsentry/internal/mldetect"
	"netsentry/internal/pipeline"
	"netsentry/internal/rules"
	"netsentry/internal/storage"
	"netsentry/internal/utils"
)

const version = "1.0.0"

func main() {
	var (
		configFile   = flag.String("config", "configs/netsentry.yaml", "Configuration file path (YAML)")
		pcapFile     = flag.String("pcap", "", "Replay a capture file instead of sniffing live")
		iface        = flag.String("interface", "", "Capture interface (overrides config)")
		showVersion  = flag.Bool("version", false, "Show version information")
		testTelegram = flag.Bool("test-telegram", false, "Send test message to Telegram")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("NetSentry v%s\n", version)
		return
	}

	config, err := utils.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Failed to load config %s: %v\n", *configFile, err)
		fmt.Println("Using default configuration...")
		config = utils.DefaultConfig()
	}
	if *pcapFile != "" {
		config.Capture.PcapFile = *pcapFile
	}
	if *iface != "" {
		config.Capture.Interface = *iface
	}

	logger := utils.NewLogger(config.Logging.Level)

	if *testTelegram {
		tn := alert.NewTelegramNotifier(
			config.Alerting.Telegram.BotToken,
			config.Alerting.Telegram.ChatID,
			config.Alerting.Telegram.ParseMode,
			true, logger)
		if err := tn.SendTestMessage(); err != nil {
			fmt.Printf("Telegram test failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Telegram test message sent")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	exporter := metrics.NewExporter(config.Metrics.Port, m, logger)
	go func() {
		if err := exporter.Start(ctx); err != nil {
			logger.Errorf("Metrics exporter error: %v", err)
		}
	}()

	// Signature rules: a missing or malformed file degrades to an empty
	// set, it never stops the daemon.
	signatures, err := rules.LoadSignatures(config.Rules.SignatureFile)
	if err != nil {
		logger.Warnf("Failed to load signature rules: %v, continuing with empty rule set", err)
		signatures = nil
	} else {
		logger.Infof("Loaded %d signature rules from %s", len(signatures), config.Rules.SignatureFile)
	}

	store := storage.NewStore(config.Storage.MaxAlerts, logger)

	var pg *storage.PostgresStore
	if config.Storage.PostgresURL != "" {
		pgCtx, pgCancel := context.WithTimeout(ctx, 10*time.Second)
		pg, err = storage.NewPostgresStore(pgCtx, config.Storage.PostgresURL)
		if err == nil {
			err = pg.EnsureSchema(pgCtx)
		}
		pgCancel()
		if err != nil {
			logger.Warnf("PostgreSQL unavailable, alerts kept in memory only: %v", err)
			pg = nil
		} else {
			defer pg.Close()
			logger.Info("PostgreSQL alert persistence enabled")
		}
	}

	geo := geoip.NewResolver(
		config.GeoIP.Endpoint,
		time.Duration(config.GeoIP.TimeoutSeconds)*time.Second,
		config.GeoIP.CacheSize,
		logger)

	sink := alert.NewAsyncSink(config.Alerting.QueueSize, store, geo, pg, m, logger)
	sink.RegisterNotifier(alert.NewLogNotifier(logger))
	tg := alert.NewTelegramNotifierWithTemplate(
		config.Alerting.Telegram.BotToken,
		config.Alerting.Telegram.ChatID,
		config.Alerting.Telegram.ParseMode,
		config.Alerting.Telegram.Enabled,
		config.Alerting.Telegram.MessageTemplate,
		logger)
	if tg.IsEnabled() {
		sink.RegisterNotifier(tg)
		logger.Info("Telegram alerts enabled")
	} else {
		logger.Warn("Telegram alerts disabled - missing configuration")
	}

	engine := rules.NewDefaultEngine(signatures, rules.Options{
		PortScanPorts:     config.Detection.PortScanPorts,
		PortScanSyns:      config.Detection.PortScanSyns,
		SynFloodThreshold: config.Detection.SynFloodThreshold,
		DNSQueryLength:    config.Detection.DNSQueryLength,
		MaxSources:        config.Detection.MaxTrackedSources,
	}, sink, logger)

	anomalyDetector := anomaly.NewDetector(anomaly.Config{
		LearningPeriod:            time.Duration(config.Detection.LearningPeriodSeconds) * time.Second,
		HorizontalScanLegacyPorts: config.Detection.HorizontalScanLegacyPorts,
		MaxSources:                config.Detection.MaxTrackedSources,
	}, sink, m, logger)

	mlDetector := mldetect.NewDetector(config.Detection.MaxTrackedSources, sink, logger)

	source, err := openSource(config)
	if err != nil {
		logger.Fatalf("Failed to open packet source: %v", err)
	}
	defer source.Close()

	dispatcher := pipeline.NewDispatcher(source, []pipeline.Detector{
		engine, anomalyDetector, mlDetector,
	}, m, logger)

	handlers := api.NewHandlers(store, signatures, logger)
	server := api.NewServer(config.API.Port, handlers)
	go func() {
		logger.Infof("Dashboard API listening on port %s", config.API.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down...")
		source.Close()
		cancel()
	}()

	logger.Info("NetSentry started, sniffing packets...")
	if err := dispatcher.Run(ctx); err != nil {
		if config.Capture.PcapFile != "" && errors.Is(err, pipeline.ErrSourceClosed) {
			logger.Infof("Capture file exhausted after %d packets", dispatcher.PacketCount())
		} else {
			logger.Errorf("Packet source terminated: %v", err)
		}
	}

	// Drain in-flight alerts, then take down the HTTP surfaces.
	sink.Close(5 * time.Second)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API server shutdown error: %v", err)
	}
	cancel()

	logger.Info("NetSentry stopped")
}


func openSource(config *utils.Config) (capture.Source, error) {
	if config.Capture.PcapFile != "" {
		return capture.OpenOffline(config.Capture.PcapFile, config.Capture.BPFFilter)
	}
	return capture.OpenLive(
		config.Capture.Interface,
		config.Capture.Snaplen,
		config.Capture.Promiscuous,
		config.Capture.BPFFilter)
}
