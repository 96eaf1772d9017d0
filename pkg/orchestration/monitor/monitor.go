package monitor

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"orchestrator/pkg/apperror"
)

// aggregatorInterval is the fixed 1Hz cadence of the global snapshot.
const aggregatorInterval = 1 * time.Second

// shutdownJoinTimeout bounds how long Stop waits for every background
// task to exit cooperatively before giving up with an error.
const shutdownJoinTimeout = 5 * time.Second

// MonitoringData is one point-in-time snapshot across every monitored
// entity, the record the aggregator fires on its 1Hz cadence and the
// externally-visible result of getLatestMetrics.
type MonitoringData struct {
	Timestamp time.Time
	Services  map[string]Sample
	Nodes     map[string]Sample
	Chains    map[string]Sample
}

// Monitor owns every background sampling task, a 1Hz aggregator, and
// the ring buffer and latest-snapshot atomic that back getLatestMetrics.
// Cancellation is cooperative: each task checks a flag
// at entry/re-arm, and Stop stops waiting after shutdownJoinTimeout.
type Monitor struct {
	probe NodeProbe

	mu       sync.RWMutex
	services map[string]*entityState
	nodes    map[string]*entityState
	chains   map[string]*entityState
	// chainMembers records, for each chain, the ordered services it
	// covers; used to derive end-to-end chain metrics.
	chainMembers map[string][]string
	topology     Topology

	latest atomic.Pointer[MonitoringData]

	historyMu sync.Mutex
	history   []MonitoringData
	histHead  int

	stopping  atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup

	rand01 func() float64
	now    func() time.Time
	tuning Tuning
}

// Option configures an optional Monitor dependency at construction time.
type Option func(*Monitor)

// WithRand01 overrides the uniform [0,1) generator the synthetic noise
// formulas use. Without it, New defaults to a fixed 1.0, which exercises
// the formulas' upper noise bound deterministically but never their range —
// callers that want the documented [0.9, 1.1] spread should supply one
// (e.g. rand/v2.Float64).
func WithRand01(f func() float64) Option {
	return func(m *Monitor) { m.rand01 = f }
}

// WithTuning overrides the adaptive-sampling and window-sizing
// parameters. Without it, New uses DefaultTuning.
func WithTuning(t Tuning) Option {
	return func(m *Monitor) { m.tuning = t }
}

// New creates a Monitor over the given telemetry probe. now defaults to
// time.Now; rand01 defaults to a fixed 1.0 unless overridden via
// WithRand01; tuning defaults to DefaultTuning unless overridden via
// WithTuning.
func New(probe NodeProbe, opts ...Option) *Monitor {
	m := &Monitor{
		probe:        probe,
		services:     make(map[string]*entityState),
		nodes:        make(map[string]*entityState),
		chains:       make(map[string]*entityState),
		chainMembers: make(map[string][]string),
		stopCh:       make(chan struct{}),
		rand01:       func() float64 { return 1.0 },
		now:          time.Now,
		tuning:       DefaultTuning(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterService adds a service to the monitored set.
func (m *Monitor) RegisterService(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.services[id]; !ok {
		m.services[id] = newEntityState(KindService, id, m.tuning)
	}
}

// RegisterNode adds a node to the monitored set.
func (m *Monitor) RegisterNode(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[id]; !ok {
		m.nodes[id] = newEntityState(KindNode, id, m.tuning)
	}
}

// RegisterChain adds a chain (an ordered sequence of service ids) to the
// monitored set.
func (m *Monitor) RegisterChain(id string, memberServiceIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chains[id]; !ok {
		m.chains[id] = newEntityState(KindChain, id, m.tuning)
	}
	m.chainMembers[id] = memberServiceIDs
}

// Start launches the per-entity adaptive samplers and the 1Hz aggregator
// as background goroutines. Start must be called at most once per
// Monitor instance.
func (m *Monitor) Start() {
	m.mu.RLock()
	for id, st := range m.services {
		m.wg.Add(1)
		go m.runSampler(id, st, m.sampleService)
	}
	for id, st := range m.nodes {
		m.wg.Add(1)
		go m.runSampler(id, st, m.sampleNode)
	}
	m.mu.RUnlock()

	m.wg.Add(1)
	go m.runAggregator()
}

// sampleFn performs one telemetry read for an entity and returns the
// scalar to push into its window plus the full sample to retain.
type sampleFn func(id string) (scalar float64, sample Sample)

// runSampler self-reschedules an entity's sampling task at its own
// adaptive interval, exiting as soon as stopCh closes. Implemented as a
// cooperative task queue rather than one thread per entity: one
// lightweight self-rearming goroutine per entity stands in for a timer
// wheel without importing one.
func (m *Monitor) runSampler(id string, st *entityState, sample sampleFn) {
	defer m.wg.Done()

	timer := time.NewTimer(st.currentInterval())
	defer timer.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-timer.C:
			scalar, full := sample(id)
			next := st.recordSample(scalar, full)
			select {
			case <-m.stopCh:
				return
			default:
			}
			timer.Reset(next)
		}
	}
}

func (m *Monitor) sampleService(id string) (float64, Sample) {
	hour := hourOfDay(m.now())
	s := m.probe.Sample(id, hour, m.rand01)
	return s.LatencyMs, s
}

func (m *Monitor) sampleNode(id string) (float64, Sample) {
	hour := hourOfDay(m.now())
	s := m.probe.Sample(id, hour, m.rand01)
	return s.CPU, s
}

func hourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60.0
}

// runAggregator fires on a fixed 1Hz cadence, snapshotting every
// entity's current metrics into one MonitoringData record, publishing it
// atomically, and pushing it into the 100-slot ring buffer.
func (m *Monitor) runAggregator() {
	defer m.wg.Done()

	ticker := time.NewTicker(aggregatorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			snap := m.buildSnapshot()
			m.latest.Store(&snap)
			m.pushHistory(snap)
		}
	}
}

// buildSnapshot reads every monitored entity's current state into one
// MonitoringData record. The three entity classes are independent of
// each other (chain derivation reads service/node state but never
// mutates it), so they're filled by an errgroup: each goroutine owns a
// disjoint map, so there's no write contention to guard.
func (m *Monitor) buildSnapshot() MonitoringData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MonitoringData{
		Timestamp: m.now(),
		Services:  make(map[string]Sample, len(m.services)),
		Nodes:     make(map[string]Sample, len(m.nodes)),
		Chains:    make(map[string]Sample, len(m.chains)),
	}

	var g errgroup.Group
	g.Go(func() error {
		for id, st := range m.services {
			snap.Services[id] = st.snapshot()
		}
		return nil
	})
	g.Go(func() error {
		for id, st := range m.nodes {
			snap.Nodes[id] = st.snapshot()
		}
		return nil
	})
	g.Go(func() error {
		for id := range m.chains {
			snap.Chains[id] = m.deriveChainMetricsLocked(id)
		}
		return nil
	})
	_ = g.Wait()

	return snap
}

func (m *Monitor) pushHistory(snap MonitoringData) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	size := m.tuning.HistorySize
	if len(m.history) < size {
		m.history = append(m.history, snap)
	} else {
		m.history[m.histHead] = snap
		m.histHead = (m.histHead + 1) % size
	}
}

// History returns every retained snapshot, oldest first.
func (m *Monitor) History() []MonitoringData {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	size := m.tuning.HistorySize
	if len(m.history) < size {
		out := make([]MonitoringData, len(m.history))
		copy(out, m.history)
		return out
	}
	out := make([]MonitoringData, size)
	copy(out, m.history[m.histHead:])
	copy(out[size-m.histHead:], m.history[:m.histHead])
	return out
}

// LatestSnapshot returns the most recently published MonitoringData under
// a single atomic load; ok is false before the aggregator's first tick.
func (m *Monitor) LatestSnapshot() (MonitoringData, bool) {
	p := m.latest.Load()
	if p == nil {
		return MonitoringData{}, false
	}
	return *p, true
}

// ReportCompletion records one chain execution outcome: its latency
// joins the chain's sample window and the chain's request and failure
// counters are incremented.
func (m *Monitor) ReportCompletion(chainID string, latencyMs float64, succeeded bool) error {
	m.mu.RLock()
	st, ok := m.chains[chainID]
	m.mu.RUnlock()
	if !ok {
		return apperror.NewWithField(apperror.CodeChainNotFound, "chain not found", "chain_id").WithDetails("id", chainID)
	}
	st.recordCompletion(latencyMs, succeeded)
	return nil
}

// Stop cooperatively signals every background task to exit and waits up
// to shutdownJoinTimeout for them to join; on timeout it stops waiting
// (tasks still running are left to exit on their own) and returns an
// error rather than blocking forever, propagating the interruption upward.
func (m *Monitor) Stop() error {
	if m.stopping.Swap(true) {
		return nil
	}
	close(m.stopCh)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(shutdownJoinTimeout):
		return apperror.New(apperror.CodeInternal, "monitor shutdown timed out; background tasks still running").
			WithSeverity(apperror.SeverityCritical)
	}
}

// pearsonCorrelation computes the interference between two colocated
// services' utilization triples: covariance(u1,u2)/(stdev1*stdev2), 0
// when either stdev vanishes.
func pearsonCorrelation(u1, u2 [3]float64) float64 {
	mean := func(v [3]float64) float64 { return (v[0] + v[1] + v[2]) / 3 }
	m1, m2 := mean(u1), mean(u2)

	var cov, var1, var2 float64
	for i := 0; i < 3; i++ {
		d1, d2 := u1[i]-m1, u2[i]-m2
		cov += d1 * d2
		var1 += d1 * d1
		var2 += d2 * d2
	}
	std1, std2 := math.Sqrt(var1/3), math.Sqrt(var2/3)
	if std1 <= 1e-9 || std2 <= 1e-9 {
		return 0
	}
	return (cov / 3) / (std1 * std2)
}

// Interference returns the Pearson correlation between two services'
// utilization triples, for use as a placement cost penalty when a
// critical-path pair would share a node.
func Interference(aCPU, aMem, aBW, bCPU, bMem, bBW float64) float64 {
	return pearsonCorrelation([3]float64{aCPU, aMem, aBW}, [3]float64{bCPU, bMem, bBW})
}
