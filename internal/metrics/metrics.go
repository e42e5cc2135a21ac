package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	trackingUpdateMissesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_update_misses_total",
		Help: "成交/平仓事件找不到对应订单跟踪记录而被丢弃的累计次数",
	}, []string{"operation"})

	persistenceFailuresCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "persistence_failures_total",
		Help: "持久化失败的累计次数(热路径吞掉的错误在此可见)",
	}, []string{"component"})

	eventsPublishedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_events_published_total",
		Help: "已发布到外部通道的订单状态事件累计数",
	}, []string{"event_type"})

	eventPublishFailuresCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_event_publish_failures_total",
		Help: "订单状态事件发布失败的累计次数",
	}, []string{"event_type"})

	marginCheckRejectionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "margin_check_rejections_total",
		Help: "保证金准入检查被拒绝的累计次数，按原因分类",
	}, []string{"reason"})

	circuitBreakerGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wallet_circuit_breaker_tripped",
		Help: "钱包熔断器状态，1表示已熔断",
	}, []string{"wallet_id"})
)

func init() {
	prometheus.MustRegister(
		trackingUpdateMissesCounter,
		persistenceFailuresCounter,
		eventsPublishedCounter,
		eventPublishFailuresCounter,
		marginCheckRejectionsCounter,
		circuitBreakerGauge,
	)
}

// IncTrackingUpdateMiss 记录一次因订单缺失被丢弃的更新
func IncTrackingUpdateMiss(operation string) {
	trackingUpdateMissesCounter.WithLabelValues(operation).Inc()
}

// IncPersistenceFailure 记录一次持久化失败
func IncPersistenceFailure(component string) {
	persistenceFailuresCounter.WithLabelValues(component).Inc()
}

// IncEventPublished 记录一次事件发布成功
func IncEventPublished(eventType string) {
	eventsPublishedCounter.WithLabelValues(eventType).Inc()
}

// IncEventPublishFailure 记录一次事件发布失败
func IncEventPublishFailure(eventType string) {
	eventPublishFailuresCounter.WithLabelValues(eventType).Inc()
}

// IncMarginCheckRejection 记录一次保证金检查拒绝
func IncMarginCheckRejection(reason string) {
	marginCheckRejectionsCounter.WithLabelValues(reason).Inc()
}

// SetCircuitBreakerTripped 更新熔断器状态指标
func SetCircuitBreakerTripped(walletID string, tripped bool) {
	value := 0.0
	if tripped {
		value = 1.0
	}
	circuitBreakerGauge.WithLabelValues(walletID).Set(value)
}
