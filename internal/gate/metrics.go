package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько заняло принятие решения (без downstream-исполнения)
	DecisionDuration *prometheus.HistogramVec

	// Traffic: общее кол-во авторизаций
	DecisionsTotal *prometheus.CounterVec

	// Errors: классификация отказов по машиночитаемым кодам
	DenialsTotal *prometheus.CounterVec

	// Подмены неизвестной роли на analysis_only — отдельный сигнал для ИБ
	RoleSubstitutions prometheus.Counter

	// Saturation: заполненность буфера decision trail (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		DecisionDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gate_decision_duration_seconds",
			Help:    "Histogram of authorization decision latencies.",
			Buckets: []float64{.000005, .00001, .000025, .00005, .0001, .00025, .0005, .001, .0025},
		}, []string{"role", "action", "outcome"}),

		DecisionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Total number of authorization decisions.",
		}, []string{"role", "action"}),

		DenialsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "gate_denials_total",
			Help: "Total number of denials by machine code.",
		}, []string{"code"}), // коды: ACTION_FORBIDDEN, RISK_LIMITS_EXCEEDED, URL_NOT_WHITELISTED, ...

		RoleSubstitutions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "gate_role_substitutions_total",
			Help: "Requests whose unknown role was downgraded to analysis_only.",
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "gate_audit_buffer_utilization",
			Help: "Current number of events in the decision trail buffer.",
		}),
	}
}
