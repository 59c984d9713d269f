package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/curasync/portal/cmd/mainconfig"
	"github.com/curasync/portal/internal/audit"
	appconfig "github.com/curasync/portal/internal/config"
	"github.com/curasync/portal/internal/notify"
	"github.com/curasync/portal/internal/reports"
	"github.com/curasync/portal/internal/session"
	"github.com/curasync/portal/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildSessionStorage picks Redis when a client is available and falls back
// to process memory otherwise. Memory sessions do not survive restarts.
func BuildSessionStorage(redisClient *redis.Client, logger *logging.Logger) session.Storage {
	if redisClient != nil {
		return session.NewRedisStorage(redisClient)
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger.Warn("redis not configured; sessions are kept in memory")
	return session.NewMemoryStorage()
}

// OpenDatabase opens the audit database through the pgx stdlib driver. It
// returns nil, nil when DATABASE_URL is unset.
func OpenDatabase(ctx context.Context, cfg *appconfig.Config) (*sql.DB, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: ping database: %w", err)
	}
	return db, nil
}

// BuildAuditService returns the audit trail, which is a no-op without a
// database.
func BuildAuditService(db *sql.DB, logger *logging.Logger) *audit.Service {
	if db == nil {
		if logger != nil {
			logger.Info("audit trail disabled; DATABASE_URL not set")
		}
		return nil
	}
	return audit.NewService(db)
}

// BuildNotifier returns the booking notifier, backed by SendGrid when an API
// key is configured and by the logging stub otherwise.
func BuildNotifier(cfg *appconfig.Config, logger *logging.Logger) *notify.BookingNotifier {
	var sender notify.EmailSender
	if cfg != nil {
		if sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sg != nil {
			sender = sg
		}
	}
	return notify.NewBookingNotifier(sender, logger)
}

// BuildReportSigner returns an S3 presigner for report links. Without AWS
// credentials resolution it returns nil and links pass through unchanged.
func BuildReportSigner(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *reports.Signer {
	if cfg == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("report links will not be presigned", "error", err)
		return nil
	}
	return reports.NewS3Signer(mainconfig.NewS3Client(awsCfg, cfg), cfg.ReportURLExpiry, logger)
}
