package observability

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SimilarityDriftGauge exposes the distance between the recent mean similarity
// score and the baseline mean.
var SimilarityDriftGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "similarity_score_drift",
	Help: "Absolute difference between the recent and baseline mean similarity score",
})

// DriftMonitor tracks a sliding window of scores. The first full window becomes
// the baseline unless one was set explicitly; later windows are compared to it.
// A shift usually means the embedding model or prompt changed underneath.
type DriftMonitor struct {
	mu sync.Mutex

	window    int
	threshold float64

	baseline    float64
	hasBaseline bool
	recent      []float64
	next        int
	filled      bool
	alerting    bool
}

// NewDriftMonitor creates a monitor. window < 1 is treated as 1.
func NewDriftMonitor(window int, threshold float64) *DriftMonitor {
	if window < 1 {
		window = 1
	}
	return &DriftMonitor{window: window, threshold: threshold, recent: make([]float64, window)}
}

// similarityDrift is fed by ObserveSimilarity.
var similarityDrift = NewDriftMonitor(200, 0.15)

// SetBaseline pins the baseline mean.
func (m *DriftMonitor) SetBaseline(mean float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline, m.hasBaseline = mean, true
}

// Baseline returns the baseline mean and whether one exists yet.
func (m *DriftMonitor) Baseline() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseline, m.hasBaseline
}

// Record adds a score and returns the current drift (0 until a full window and baseline exist).
func (m *DriftMonitor) Record(score float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recent[m.next] = score
	m.next = (m.next + 1) % m.window
	if m.next == 0 {
		m.filled = true
	}
	if !m.filled {
		return 0
	}
	mean := m.mean()
	if !m.hasBaseline {
		m.baseline, m.hasBaseline = mean, true
		slog.Info("similarity baseline established", slog.Float64("mean", mean), slog.Int("window", m.window))
		return 0
	}

	drift := mean - m.baseline
	if drift < 0 {
		drift = -drift
	}
	switch {
	case drift > m.threshold && !m.alerting:
		m.alerting = true
		slog.Warn("similarity score drift detected",
			slog.Float64("drift", drift),
			slog.Float64("baseline", m.baseline),
			slog.Float64("recent_mean", mean),
			slog.Float64("threshold", m.threshold))
	case drift <= m.threshold && m.alerting:
		m.alerting = false
		slog.Info("similarity score drift recovered", slog.Float64("drift", drift))
	}
	return drift
}

// caller holds mu
func (m *DriftMonitor) mean() float64 {
	sum := 0.0
	for _, s := range m.recent {
		sum += s
	}
	return sum / float64(len(m.recent))
}

// Reset forgets the window and the baseline.
func (m *DriftMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = make([]float64, m.window)
	m.next, m.filled = 0, false
	m.baseline, m.hasBaseline, m.alerting = 0, false, false
}
