package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"go.opentelemetry.io/otel/metric"
)

// InitLogger installs the default slog logger. With a log file configured it
// writes rotated JSON; otherwise JSON goes to stdout.
func InitLogger(logFile string) (*slog.Logger, error) {
	var logger *slog.Logger
	if logFile == "" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	} else {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		rotated := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		logger = slog.New(slog.NewJSONHandler(rotated, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	slog.SetDefault(logger)
	return logger, nil
}

// Metrics bundles the chat counters. A nil *Metrics is a no-op so tests can
// pass nothing.
type Metrics struct {
	sessionsStarted  metric.Int64Counter
	messagesAppended metric.Int64Counter
	wsConnects       metric.Int64Counter
	wsDisconnects    metric.Int64Counter
}

func (m *Metrics) SessionStarted(ctx context.Context) {
	if m != nil {
		m.sessionsStarted.Add(ctx, 1)
	}
}

func (m *Metrics) MessageAppended(ctx context.Context) {
	if m != nil {
		m.messagesAppended.Add(ctx, 1)
	}
}

func (m *Metrics) WSConnected(ctx context.Context) {
	if m != nil {
		m.wsConnects.Add(ctx, 1)
	}
}

func (m *Metrics) WSDisconnected(ctx context.Context) {
	if m != nil {
		m.wsDisconnects.Add(ctx, 1)
	}
}

// InitTelemetry sets up the OpenTelemetry meter provider with a periodic
// stdout exporter writing to a rotating file, and returns the chat counters
// plus a shutdown func.
func InitTelemetry(ctx context.Context, metricsDir string) (*Metrics, func(), error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("nchekwa-chat"),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	if metricsDir == "" {
		metricsDir = "logs"
	}
	if err := os.MkdirAll(metricsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create metrics directory: %w", err)
	}

	metricsFile := &lumberjack.Logger{
		Filename:   filepath.Join(metricsDir, "chat_metrics.log"),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(metricsFile),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("nchekwa-chat")
	m := &Metrics{}
	if m.sessionsStarted, err = meter.Int64Counter("chat.sessions.started"); err != nil {
		return nil, nil, err
	}
	if m.messagesAppended, err = meter.Int64Counter("chat.messages.appended"); err != nil {
		return nil, nil, err
	}
	if m.wsConnects, err = meter.Int64Counter("chat.ws.connects"); err != nil {
		return nil, nil, err
	}
	if m.wsDisconnects, err = meter.Int64Counter("chat.ws.disconnects"); err != nil {
		return nil, nil, err
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("meter provider shutdown failed", "error", err)
		}
	}
	return m, shutdown, nil
}
