// Package proxy forwards gateway requests to the backing services.
package proxy

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/shopflow/services/common/errors"
	"github.com/yashrajoria/shopflow/services/common/logger"
	"go.uber.org/zap"
)

var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

var ErrUpstreamUnavailable = apperrors.New(http.StatusBadGateway, "UpstreamUnavailable", "Service unreachable", nil)

// Forwarder relays requests unchanged (path, query, headers and body) to a
// target base URL.
type Forwarder struct {
	client *http.Client
}

func NewForwarder(timeout time.Duration) *Forwarder {
	return &Forwarder{client: &http.Client{Timeout: timeout}}
}

// To returns a handler forwarding to targetBase, e.g. http://order-service:9090.
func (f *Forwarder) To(targetBase string) gin.HandlerFunc {
	targetBase = strings.TrimRight(targetBase, "/")
	return func(c *gin.Context) {
		f.forward(c, targetBase)
	}
}

func (f *Forwarder) forward(c *gin.Context, targetBase string) {
	log := logger.For(c)

	targetURL := targetBase + c.Request.URL.Path
	if c.Request.URL.RawQuery != "" {
		targetURL += "?" + c.Request.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, targetURL, c.Request.Body)
	if err != nil {
		apperrors.Abort(c, apperrors.ErrInternalServer.Wrap(err))
		return
	}
	req.ContentLength = c.Request.ContentLength

	for k, v := range c.Request.Header {
		if hopByHop[strings.ToLower(k)] {
			continue
		}
		req.Header[k] = v
	}
	if rid := c.GetString(logger.RequestIDKey); rid != "" {
		req.Header.Set(logger.RequestIDHeader, rid)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.Error("Failed to forward request", zap.String("url", targetURL), zap.Error(err))
		apperrors.Abort(c, ErrUpstreamUnavailable.Wrap(err))
		return
	}
	defer resp.Body.Close()

	for k, v := range resp.Header {
		lowerKey := strings.ToLower(k)
		// CORS is answered by the gateway itself
		if strings.HasPrefix(lowerKey, "access-control-") || hopByHop[lowerKey] {
			continue
		}
		c.Header(k, strings.Join(v, ","))
	}

	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		log.Warn("Failed to copy response body", zap.String("url", targetURL), zap.Error(err))
	}
}
