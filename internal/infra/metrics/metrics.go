package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	AnnouncementsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "raid_announcements_created_total",
		Help: "Созданные объявления рейдов по источнику",
	}, []string{"source"})
	AnnouncementsRetired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "raid_announcements_retired_total",
		Help: "Завершённые объявления по причине",
	}, []string{"reason"})
	AnnouncementsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "raid_announcements_live",
		Help: "Активные объявления",
	})
	LedgerEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "raid_ledger_events_total",
		Help: "События журнала участия",
	}, []string{"kind"})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "raid_notifications_total",
		Help: "Личные уведомления по статусу",
	}, []string{"status"})
	ReconcileErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "raid_reconcile_errors_total",
		Help: "Ошибки цикла сверки по шагу",
	}, []string{"step"})
	ReconcileTickSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "raid_reconcile_tick_seconds",
		Help:    "Длительность одного тика сверки",
		Buckets: prometheus.DefBuckets,
	})
	DifficultyLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "raid_difficulty_lookups_total",
		Help: "Запросы оценки сложности по результату",
	}, []string{"result"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		AnnouncementsCreated,
		AnnouncementsRetired,
		AnnouncementsLive,
		LedgerEvents,
		Notifications,
		ReconcileErrors,
		ReconcileTickSeconds,
		DifficultyLookups,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncCreated учитывает новое объявление.
func IncCreated(source string) {
	AnnouncementsCreated.WithLabelValues(source).Inc()
	AnnouncementsLive.Inc()
}

// IncRetired учитывает завершённое объявление.
func IncRetired(reason string) {
	AnnouncementsRetired.WithLabelValues(reason).Inc()
	AnnouncementsLive.Dec()
}

// IncLedgerEvent учитывает событие журнала.
func IncLedgerEvent(kind string) {
	LedgerEvents.WithLabelValues(kind).Inc()
}

// IncNotification учитывает доставку уведомления.
func IncNotification(status string) {
	Notifications.WithLabelValues(status).Inc()
}

// IncReconcileError учитывает ошибку шага сверки.
func IncReconcileError(step string) {
	ReconcileErrors.WithLabelValues(step).Inc()
}
