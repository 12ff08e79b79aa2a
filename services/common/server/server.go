// Package server wires the HTTP stack and process lifecycle shared by the services.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	awspkg "github.com/yashrajoria/shopflow/pkg/aws"
	"github.com/yashrajoria/shopflow/services/common/config"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/common/logger"
	"github.com/yashrajoria/shopflow/services/common/middleware"
	"go.uber.org/zap"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Observability is the logger and metrics client of one service.
type Observability struct {
	Log     *zap.Logger
	Metrics *awspkg.MetricsClient
}

// Setup initializes logging (teeing to CloudWatch Logs when enabled), the
// metrics client, and applies Secrets Manager overrides when AWS_USE_SECRETS
// is set. It returns the raw secret values for service-specific keys.
func Setup(ctx context.Context, serviceName string, cfg *config.Common) (Observability, map[string]string) {
	log := logger.Initialize(cfg.Env)
	if cfg.CloudWatch.Enabled {
		cw, err := awspkg.NewCloudWatchLogsClient(ctx, serviceName, cfg.CloudWatch.LogGroup)
		if err != nil {
			log.Warn("CloudWatch Logs unavailable, logging locally only", zap.Error(err))
		} else {
			log = logger.InitializeWithWriter(cfg.Env, cw)
		}
	}
	log = log.With(zap.String("service", serviceName))
	logger.Log = log
	zap.ReplaceGlobals(log)

	metrics, err := awspkg.NewMetricsClient(ctx, cfg.CloudWatch.Namespace, cfg.CloudWatch.Enabled)
	if err != nil {
		log.Warn("CloudWatch metrics unavailable", zap.Error(err))
		metrics, _ = awspkg.NewMetricsClient(ctx, cfg.CloudWatch.Namespace, false)
	}

	var secrets map[string]string
	if cfg.UseSecrets {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err == nil {
			secrets, err = cfg.ApplySecrets(ctx, awspkg.NewSecretsClient(awsCfg))
		}
		if err != nil {
			log.Warn("Secrets Manager override failed, using environment", zap.Error(err))
		}
	}

	return Observability{Log: log, Metrics: metrics}, secrets
}

// NewRouter builds a gin engine with the shared middleware chain and a
// /health endpoint.
func NewRouter(serviceName string, obs Observability, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		logger.RequestID(),
		middleware.RequestLogger(obs.Log),
		middleware.SecurityHeaders(),
		middleware.CORS(allowedOrigins),
		middleware.Timeout(requestTimeout),
		middleware.MetricsMiddleware(obs.Metrics, serviceName),
		apperrors.ErrorMiddleware(),
	)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": serviceName})
	})
	return r
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
