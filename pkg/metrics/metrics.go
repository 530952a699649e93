package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var httpDurationBuckets = []float64{
	// fast responses
	25, 50, 100, 250, 500,
	// medium
	1000, 2500, 5000, 15000,
	// the automation grace wait can hold a request for minutes
	60000, 180000, 300000, 360000,
}

// Metrics bundles the gateway's Prometheus collectors.
type Metrics struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec

	// WebhookEvents counts processed webhook requests by event class and
	// log status (success, error_signature, ...).
	WebhookEvents *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "subgate",
			Name:      "req_total",
			Help:      "HTTP requests processed, partitioned by status code, method and route.",
		}, []string{"code", "method", "url"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: "subgate",
			Name:      "req_dur_ms",
			Help:      "HTTP request latencies in milliseconds.",
			Buckets:   httpDurationBuckets,
		}, []string{"code", "method", "url"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "subgate",
			Name:      "webhook_events_total",
			Help:      "Webhook requests by event class and outcome status.",
		}, []string{"event_class", "status"}),
	}
	prometheus.MustRegister(m.reqCnt, m.reqDur, m.WebhookEvents)
	return m
}

// HandlerFunc instruments every request with count and duration.
func (m *Metrics) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		url := c.FullPath()
		if url == "" {
			url = c.Request.URL.Path
		}
		code := strconv.Itoa(c.Writer.Status())
		m.reqCnt.WithLabelValues(code, c.Request.Method, url).Inc()
		m.reqDur.WithLabelValues(code, c.Request.Method, url).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Serve exposes /metrics on its own address so scrapes stay out of the
// application access log.
func (m *Metrics) Serve(addr string, log *zap.SugaredLogger) {
	r := gin.New()
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	go func() {
		if err := r.Run(addr); err != nil {
			log.Errorf("metrics server error: %v", err)
		}
	}()
}
