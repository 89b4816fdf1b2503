package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stage labels.
const (
	StageReceive    = "receive"
	StageTranscribe = "transcribe"
	StageGenerate   = "generate"
	StageSynthesize = "synthesize"
)

var (
	// Pipeline metrics
	pipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_relay_pipeline_runs_total",
		Help: "Total number of pipeline invocations by entry point and outcome",
	}, []string{"entry", "outcome"})

	pipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_relay_pipeline_duration_seconds",
		Help:    "End-to-end pipeline latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45},
	}, []string{"entry"})

	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_relay_stage_latency_seconds",
		Help:    "Per-stage provider latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 15.0},
	}, []string{"stage"})

	stageRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_relay_stage_requests_total",
		Help: "Total number of stage executions by status",
	}, []string{"stage", "status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_relay_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Synthesis metrics
	synthesisChunks = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_relay_synthesis_chunks",
		Help:    "Number of provider requests a single synthesis was split into",
		Buckets: []float64{1, 2, 3, 4, 6, 10},
	})

	fallbackAudio = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_relay_fallback_audio_total",
		Help: "Fallback utterance synthesis attempts by result",
	}, []string{"result"})

	// Session metrics
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_relay_sessions_created_total",
		Help: "Total number of conversation sessions created",
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_relay_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_relay_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_relay_audio_bytes_received_total",
		Help: "Total bytes of uploaded audio accepted into the pipeline",
	})
)

// Metrics tracks metrics for a single pipeline invocation
type Metrics struct {
	entry      string
	startTime  time.Time
	stageStart map[string]time.Time
	mu         sync.Mutex
}

// NewPipelineMetrics creates a new metrics tracker for one invocation
func NewPipelineMetrics(entry string) *Metrics {
	return &Metrics{
		entry:      entry,
		startTime:  time.Now(),
		stageStart: make(map[string]time.Time, 4),
	}
}

// RecordStageStart records the start of a stage
func (m *Metrics) RecordStageStart(stage string) {
	m.mu.Lock()
	m.stageStart[stage] = time.Now()
	m.mu.Unlock()
}

// RecordStageEnd records the end of a stage
func (m *Metrics) RecordStageEnd(stage string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if started, ok := m.stageStart[stage]; ok {
		stageLatency.WithLabelValues(stage).Observe(time.Since(started).Seconds())
		delete(m.stageStart, stage)
	}

	status := "success"
	if !success {
		status = "error"
	}
	stageRequests.WithLabelValues(stage, status).Inc()
}

// RecordOutcome records the terminal outcome of the invocation ("success" or an error category)
func (m *Metrics) RecordOutcome(outcome string) {
	pipelineRuns.WithLabelValues(m.entry, outcome).Inc()
	pipelineDuration.WithLabelValues(m.entry).Observe(time.Since(m.startTime).Seconds())
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records accepted audio bytes
func (m *Metrics) RecordAudioBytes(n int) {
	audioBytesReceived.Add(float64(n))
}

// RecordSynthesisChunks records how many provider requests a synthesis needed
func RecordSynthesisChunks(n int) {
	synthesisChunks.Observe(float64(n))
}

// RecordFallback records a fallback utterance attempt
func RecordFallback(ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	fallbackAudio.WithLabelValues(result).Inc()
}

// RecordSessionCreated increments the created sessions counter
func RecordSessionCreated() {
	sessionsCreated.Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
