package core

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/curio-ai/curio/pkg/metrics"
)

type Metrics struct {
	apiResponseTime *prometheus.HistogramVec
	apiErrorCounter *prometheus.CounterVec

	queryStageTime   *prometheus.HistogramVec
	queryRouteTotal  *prometheus.CounterVec
	modelRequestTime *prometheus.HistogramVec
	modelError       *prometheus.CounterVec

	crawlTotal     *prometheus.CounterVec
	crawlDuration  *prometheus.HistogramVec
	knowledgeTotal *prometheus.GaugeVec
	trainingTotal  *prometheus.CounterVec
}

func NewMetrics(ns, system string) *Metrics {
	metrics.SetupMetricsManager(ns, system, prometheus.DefaultRegisterer.(*prometheus.Registry))

	m := &Metrics{
		apiResponseTime: metrics.NewHistogramVec("api_response_time", []string{"api"}),
		apiErrorCounter: metrics.NewCounterVec("api_error", []string{"method", "api", "status"}),

		queryStageTime:   metrics.NewHistogramVec("query_stage_time", []string{"stage"}),
		queryRouteTotal:  metrics.NewCounterVec("query_route_total", []string{"route"}),
		modelRequestTime: metrics.NewHistogramVec("model_request_time", []string{"task"}),
		modelError:       metrics.NewCounterVec("model_error", []string{"type"}),

		crawlTotal:     metrics.NewCounterVec("crawl_total", []string{"source", "result"}),
		crawlDuration:  metrics.NewHistogramVec("crawl_duration", []string{"source"}),
		knowledgeTotal: metrics.NewGaugeVec("knowledge_total", nil),
		trainingTotal:  metrics.NewCounterVec("training_total", []string{"mode", "result"}),
	}

	return m
}

func (m *Metrics) ApiResponseTimer(api string) *prometheus.Timer {
	return prometheus.NewTimer(m.apiResponseTime.WithLabelValues(api))
}

func (m *Metrics) ApiErrorInc(method, api string, status int) {
	m.apiErrorCounter.WithLabelValues(method, api, strconv.Itoa(status)).Inc()
}

func (m *Metrics) QueryStageTimer(stage string) *prometheus.Timer {
	return prometheus.NewTimer(m.queryStageTime.WithLabelValues(stage))
}

// QueryRouteInc 记录问题最终由哪条路由回答
func (m *Metrics) QueryRouteInc(route string) {
	m.queryRouteTotal.WithLabelValues(route).Inc()
}

func (m *Metrics) ModelRequestTimer(task string) *prometheus.Timer {
	return prometheus.NewTimer(m.modelRequestTime.WithLabelValues(task))
}

func (m *Metrics) ModelErrorInc(typ string) {
	m.modelError.WithLabelValues(typ).Inc()
}

func (m *Metrics) CrawlInc(source, result string) {
	m.crawlTotal.WithLabelValues(source, result).Inc()
}

func (m *Metrics) CrawlTimer(source string) *prometheus.Timer {
	return prometheus.NewTimer(m.crawlDuration.WithLabelValues(source))
}

func (m *Metrics) SetKnowledgeTotal(total int64) {
	m.knowledgeTotal.WithLabelValues().Set(float64(total))
}

func (m *Metrics) TrainingInc(mode, result string) {
	m.trainingTotal.WithLabelValues(mode, result).Inc()
}
