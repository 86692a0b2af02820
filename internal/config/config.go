package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// SMTP
	// ----------------------------
	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPUser     string `envconfig:"SMTP_USER" default:""`
	SMTPPassword string `envconfig:"SMTP_PASSWORD" default:""`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"noreply@mailflow.local"`

	// ----------------------------
	// Sending limits
	// ----------------------------
	HourlySendLimit int64 `envconfig:"HOURLY_SEND_LIMIT" default:"100"`
	DailySendLimit  int   `envconfig:"DAILY_SEND_LIMIT" default:"2000"`

	// SendPace smooths transport calls below the hourly ceiling
	// (token bucket, events per second).
	SendPace float64 `envconfig:"SEND_PACE" default:"5"`

	// ----------------------------
	// Business hours
	// ----------------------------
	BusinessTZ         string `envconfig:"BUSINESS_TZ" default:"UTC"`
	BusinessHoursStart int    `envconfig:"BUSINESS_HOURS_START" default:"9"`
	BusinessHoursEnd   int    `envconfig:"BUSINESS_HOURS_END" default:"17"`

	// ----------------------------
	// Orchestrator
	// ----------------------------
	SendTimeout            time.Duration `envconfig:"SEND_TIMEOUT" default:"30s"`
	StaleProcessingAfter   time.Duration `envconfig:"STALE_PROCESSING_AFTER" default:"30m"`
	QuotaSyncInterval      time.Duration `envconfig:"QUOTA_SYNC_INTERVAL" default:"15m"`
	BreakerTripThreshold   int           `envconfig:"BREAKER_TRIP_THRESHOLD" default:"10"`
	BreakerResumeDelay     time.Duration `envconfig:"BREAKER_RESUME_DELAY" default:"5m"`
	TransportDisabledRetry time.Duration `envconfig:"TRANSPORT_DISABLED_RETRY" default:"1h"`

	// ----------------------------
	// Worker schedules (cron specs)
	// ----------------------------
	TickSchedule      string `envconfig:"TICK_SCHEDULE" default:"@every 30s"`
	ReconcileSchedule string `envconfig:"RECONCILE_SCHEDULE" default:"@every 5m"`

	// ----------------------------
	// HTTP API
	// ----------------------------
	APIPort string `envconfig:"API_PORT" default:"8080"`

	// ----------------------------
	// Metrics
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`

	// ----------------------------
	// Notifications (optional)
	// ----------------------------
	AMQPURL string `envconfig:"AMQP_URL" default:""`

	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
