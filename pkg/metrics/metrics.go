package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PeriodMetrics 周期解析相关指标
//
// 原子计数器始终可用（测试与 CLI 直接读取）；Prometheus 指标在 Register 之后才生效。
// 所有方法对 nil 接收者安全。
type PeriodMetrics struct {
	ResolveHits     atomic.Uint64
	ResolveMisses   atomic.Uint64
	Materialized    atomic.Uint64
	Conflicts       atomic.Uint64
	LegacyFallbacks atomic.Uint64
	TypeChanges     atomic.Uint64

	// Prometheus 指标（Register 前为 nil）
	resolveHitsC      prometheus.Counter
	resolveMissesC    prometheus.Counter
	materializedC     prometheus.Counter
	conflictsC        prometheus.Counter
	legacyFallbacksC  prometheus.Counter
	typeChangesC      prometheus.Counter
	materializeBatchH prometheus.Histogram

	registerOnce sync.Once
}

// NewPeriodMetrics 创建指标集合
func NewPeriodMetrics() *PeriodMetrics {
	return &PeriodMetrics{}
}

// Register 向 registry 注册指标；registry 为 nil 时不做任何事，重复调用无副作用
func (m *PeriodMetrics) Register(registry prometheus.Registerer) {
	if m == nil || registry == nil {
		return
	}

	m.registerOnce.Do(func() {
		factory := promauto.With(registry)

		m.resolveHitsC = factory.NewCounter(prometheus.CounterOpts{
			Name: "classcomp_period_resolve_hits_total",
			Help: "Total number of period lookups served from materialized metadata",
		})
		m.resolveMissesC = factory.NewCounter(prometheus.CounterOpts{
			Name: "classcomp_period_resolve_misses_total",
			Help: "Total number of period lookups that required materialization",
		})
		m.materializedC = factory.NewCounter(prometheus.CounterOpts{
			Name: "classcomp_period_materialized_total",
			Help: "Total number of period rows materialized",
		})
		m.conflictsC = factory.NewCounter(prometheus.CounterOpts{
			Name: "classcomp_period_materialize_conflicts_total",
			Help: "Total number of concurrent materialization conflicts",
		})
		m.legacyFallbacksC = factory.NewCounter(prometheus.CounterOpts{
			Name: "classcomp_period_legacy_fallbacks_total",
			Help: "Total number of resolutions answered by the stateless legacy calculator",
		})
		m.typeChangesC = factory.NewCounter(prometheus.CounterOpts{
			Name: "classcomp_period_type_changes_total",
			Help: "Total number of committed period type changes",
		})
		m.materializeBatchH = factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "classcomp_period_materialize_batch_size",
			Help:    "Number of periods materialized by a single resolution",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 100},
		})
	})
}

// IncResolveHit 命中已物化周期
func (m *PeriodMetrics) IncResolveHit() {
	if m == nil {
		return
	}
	m.ResolveHits.Add(1)
	if m.resolveHitsC != nil {
		m.resolveHitsC.Inc()
	}
}

// IncResolveMiss 需要物化新周期
func (m *PeriodMetrics) IncResolveMiss() {
	if m == nil {
		return
	}
	m.ResolveMisses.Add(1)
	if m.resolveMissesC != nil {
		m.resolveMissesC.Inc()
	}
}

// IncMaterialized 新写入一条周期记录
func (m *PeriodMetrics) IncMaterialized() {
	if m == nil {
		return
	}
	m.Materialized.Add(1)
	if m.materializedC != nil {
		m.materializedC.Inc()
	}
}

// IncConflict 并发物化冲突
func (m *PeriodMetrics) IncConflict() {
	if m == nil {
		return
	}
	m.Conflicts.Add(1)
	if m.conflictsC != nil {
		m.conflictsC.Inc()
	}
}

// IncLegacyFallback 回退到无状态计算
func (m *PeriodMetrics) IncLegacyFallback() {
	if m == nil {
		return
	}
	m.LegacyFallbacks.Add(1)
	if m.legacyFallbacksC != nil {
		m.legacyFallbacksC.Inc()
	}
}

// IncTypeChange 周期类型变更成功
func (m *PeriodMetrics) IncTypeChange() {
	if m == nil {
		return
	}
	m.TypeChanges.Add(1)
	if m.typeChangesC != nil {
		m.typeChangesC.Inc()
	}
}

// ObserveBatch 记录一次解析中物化的周期数
func (m *PeriodMetrics) ObserveBatch(n int) {
	if m == nil || m.materializeBatchH == nil || n <= 0 {
		return
	}
	m.materializeBatchH.Observe(float64(n))
}
