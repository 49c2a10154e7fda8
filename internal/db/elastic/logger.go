package elastic

import (
	"net/http"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"go.uber.org/zap"
)

var _ elastictransport.Logger = (*transportLogger)(nil)

// transportLogger adapts zap to the elastictransport.Logger interface.
type transportLogger struct {
	logger *zap.Logger
}

// LogRoundTrip logs one HTTP exchange with the cluster.
func (l *transportLogger) LogRoundTrip(
	req *http.Request, res *http.Response, err error, start time.Time, dur time.Duration,
) error {
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Time("start", start),
		zap.Duration("duration", dur),
	}
	if res != nil {
		fields = append(fields, zap.Int("status", res.StatusCode))
	}
	if err != nil {
		l.logger.Warn("Elasticsearch request failed", append(fields, zap.Error(err))...)
		return nil
	}
	l.logger.Debug("Elasticsearch request", fields...)
	return nil
}

// RequestBodyEnabled reports whether request bodies are passed to LogRoundTrip.
func (l *transportLogger) RequestBodyEnabled() bool { return false }

// ResponseBodyEnabled reports whether response bodies are passed to LogRoundTrip.
func (l *transportLogger) ResponseBodyEnabled() bool { return false }
