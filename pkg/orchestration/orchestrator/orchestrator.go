// Package orchestrator wires the dependency graph, node registry,
// deployer, monitor, and aggregator together into the chain scheduler
// surface: getPlacement, getCriticalPaths, getLatestMetrics,
// reportCompletion, plus the operational Deploy/Refine/Start/Stop entry
// points a host service drives.
package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	"orchestrator/pkg/apperror"
	"orchestrator/pkg/orchestration/aggregator"
	"orchestrator/pkg/orchestration/criticalpath"
	"orchestrator/pkg/orchestration/deployer"
	"orchestrator/pkg/orchestration/depgraph"
	"orchestrator/pkg/orchestration/monitor"
	"orchestrator/pkg/orchestration/paramvector"
	"orchestrator/pkg/orchestration/registry"
	"orchestrator/pkg/orchestration/restypes"
)

// Config carries the tunables the facade threads through to its
// component parts: the refinement loop (deployer), the adaptive sampler
// (monitor), and the federated aggregator.
type Config struct {
	MaxRefinementIterations int

	ConvergenceThreshold      float64
	MigrationImprovementRatio float64
	EnableInterferencePenalty bool

	BaseSamplingInterval time.Duration
	MinSamplingInterval  time.Duration
	EpsilonResource      float64
	EpsilonLatency       float64
	HistorySize          int
	WindowSize           int

	BaseLearningRate  float64
	AdaptivityFactor  float64
	QuantityThreshold int
	QualityThreshold  float64
	LocalBlendRatio   float64

	// UtilizationThreshold seeds the shared parameter vector's overload
	// threshold; the aggregator may move it after that via ApplyUpdate.
	UtilizationThreshold float64
}

// DefaultConfig returns the documented default tunables.
func DefaultConfig() Config {
	monTuning := monitor.DefaultTuning()
	depTuning := deployer.DefaultTuning()
	aggTuning := aggregator.DefaultTuning()
	return Config{
		MaxRefinementIterations:   10,
		ConvergenceThreshold:      depTuning.ConvergenceThreshold,
		MigrationImprovementRatio: depTuning.MigrationImprovementRatio,
		BaseSamplingInterval:      monTuning.BaseSamplingInterval,
		MinSamplingInterval:       monTuning.MinSamplingInterval,
		EpsilonResource:           monTuning.EpsilonResource,
		EpsilonLatency:            monTuning.EpsilonLatency,
		HistorySize:               monTuning.HistorySize,
		WindowSize:                monTuning.WindowSize,
		BaseLearningRate:          aggTuning.BaseLearningRate,
		AdaptivityFactor:          aggTuning.AdaptivityFactor,
		QuantityThreshold:         aggTuning.SampleCountMin,
		QualityThreshold:          aggTuning.QualityMin,
		LocalBlendRatio:           aggTuning.LocalBlendRatio,
		UtilizationThreshold:      paramvector.DefaultUth,
	}
}

// monitorTuning projects the monitor-relevant fields of Config into a
// monitor.Tuning, falling back to documented defaults for the SLA
// fields the facade doesn't expose per-entity overrides for.
func (c Config) monitorTuning() monitor.Tuning {
	d := monitor.DefaultTuning()
	t := d
	if c.BaseSamplingInterval > 0 {
		t.BaseSamplingInterval = c.BaseSamplingInterval
	}
	if c.MinSamplingInterval > 0 {
		t.MinSamplingInterval = c.MinSamplingInterval
	}
	if c.EpsilonResource > 0 {
		t.EpsilonResource = c.EpsilonResource
	}
	if c.EpsilonLatency > 0 {
		t.EpsilonLatency = c.EpsilonLatency
	}
	if c.HistorySize > 0 {
		t.HistorySize = c.HistorySize
	}
	if c.WindowSize > 0 {
		t.WindowSize = c.WindowSize
	}
	return t
}

func (c Config) aggregatorTuning() aggregator.Tuning {
	t := aggregator.DefaultTuning()
	if c.BaseLearningRate > 0 {
		t.BaseLearningRate = c.BaseLearningRate
	}
	if c.AdaptivityFactor > 0 {
		t.AdaptivityFactor = c.AdaptivityFactor
	}
	if c.QuantityThreshold > 0 {
		t.SampleCountMin = c.QuantityThreshold
	}
	if c.QualityThreshold > 0 {
		t.QualityMin = c.QualityThreshold
	}
	if c.LocalBlendRatio > 0 {
		t.LocalBlendRatio = c.LocalBlendRatio
	}
	return t
}

func (c Config) deployerTuning() deployer.Tuning {
	t := deployer.DefaultTuning()
	if c.ConvergenceThreshold > 0 {
		t.ConvergenceThreshold = c.ConvergenceThreshold
	}
	if c.MigrationImprovementRatio > 0 {
		t.MigrationImprovementRatio = c.MigrationImprovementRatio
	}
	t.InterferencePenaltyEnabled = c.EnableInterferencePenalty
	return t
}

// Orchestrator is the facade a host service constructs once per fleet:
// it owns the dependency graph, node registry, shared parameter vector,
// deployer, monitor, and aggregator. Deploy and Refine serialize against
// each other via opMu, since the underlying Deployer is not reentrant;
// every other method is safe to call concurrently.
type Orchestrator struct {
	log      *slog.Logger
	cfg      Config
	graph    *depgraph.Graph
	nodes    *registry.Registry
	params   *paramvector.Vector
	dep      *deployer.Deployer
	mon      *monitor.Monitor
	agg      *aggregator.Aggregator
	analyzer *criticalpath.Analyzer

	opMu sync.Mutex

	chains map[string][]string // chain id -> ordered service ids
}

// New wires a fresh Orchestrator over an empty graph and registry. probe
// supplies the Monitor's telemetry source (a live NodeProbe, or
// monitor.SyntheticProbe when none is wired). log must not be nil;
// callers that don't care about logging should pass slog.New(a
// discarding handler).
func New(log *slog.Logger, cfg Config, probe monitor.NodeProbe, monOpts ...monitor.Option) *Orchestrator {
	graph := depgraph.NewGraph()
	nodes := registry.NewRegistry()
	params := paramvector.New(paramvector.WithOverloadThreshold(cfg.UtilizationThreshold))

	monOpts = append([]monitor.Option{monitor.WithTuning(cfg.monitorTuning())}, monOpts...)

	o := &Orchestrator{
		log:      log,
		cfg:      cfg,
		graph:    graph,
		nodes:    nodes,
		params:   params,
		dep:      deployer.New(graph, nodes, params, deployer.WithTuning(cfg.deployerTuning())),
		mon:      monitor.New(probe, monOpts...),
		agg:      aggregator.New(params, aggregator.WithTuning(cfg.aggregatorTuning())),
		analyzer: criticalpath.New(graph, nodes, params),
		chains:   make(map[string][]string),
	}
	o.mon.SetTopology(o)
	return o
}

// NodeOf and DelayBetween implement monitor.Topology, letting the
// Monitor derive chain communication latency without importing the
// registry/deployer packages directly.
func (o *Orchestrator) NodeOf(serviceID string) (string, bool) {
	svc, ok := o.graph.Service(serviceID)
	if !ok {
		return "", false
	}
	return svc.NodeID()
}

func (o *Orchestrator) DelayBetween(a, b string) (float64, error) {
	return o.nodes.DelayBetween(a, b)
}

// RegisterService adds a service to the graph, the monitor, and logs the
// registration at debug level.
func (o *Orchestrator) RegisterService(id string, req restypes.Requirements, executionTimeMs float64) {
	o.graph.AddService(restypes.NewService(id, req, executionTimeMs))
	o.mon.RegisterService(id)
	o.log.Debug("service registered", "service_id", id, "exec_ms", executionTimeMs)
}

// AddDependency wires a weighted edge into the dependency graph.
func (o *Orchestrator) AddDependency(src, dst string, dataVolume, frequency float64) error {
	return o.graph.AddDependency(src, dst, dataVolume, frequency)
}

// RegisterNode adds a node to the registry, the monitor, and the
// aggregator's federation (its capability is derived from its default
// capacity totals).
func (o *Orchestrator) RegisterNode(id string, isEdge bool) {
	n := restypes.NewNode(id, isEdge)
	o.nodes.Register(n)
	o.mon.RegisterNode(id)
	totals := n.Capacity.Totals()
	o.agg.RegisterNode(id, totals.CPU, totals.Mem, totals.Bandwidth)
	o.log.Debug("node registered", "node_id", id, "edge", isEdge)
}

// SetDelay records the one-way network delay between two registered
// nodes.
func (o *Orchestrator) SetDelay(a, b string, ms float64) error {
	return o.nodes.SetDelay(a, b, ms)
}

// RegisterChain names an ordered sequence of services as a chain the
// scheduler surface and the Monitor can refer to by id.
func (o *Orchestrator) RegisterChain(chainID string, memberServiceIDs []string) {
	o.chains[chainID] = memberServiceIDs
	o.mon.RegisterChain(chainID, memberServiceIDs)
}

// Start launches the Monitor's background sampling and aggregation
// goroutines. Call once, after every node/service/chain registration.
func (o *Orchestrator) Start() {
	o.mon.Start()
}

// Stop joins every Monitor background task before returning.
func (o *Orchestrator) Stop() error {
	return o.mon.Stop()
}

// Deploy runs Phase A through C, producing the initial placement.
func (o *Orchestrator) Deploy() deployer.Result {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	return o.dep.ExecuteDeployment()
}

// Refine runs Phase D, the federated refinement loop, using the
// orchestrator's own aggregator as the per-round proposer.
func (o *Orchestrator) Refine() deployer.Result {
	o.opMu.Lock()
	defer o.opMu.Unlock()
	return o.dep.Refine(o.agg, o.cfg.MaxRefinementIterations)
}

// GetPlacement returns the current service-id -> node-id map.
func (o *Orchestrator) GetPlacement() map[string]string {
	return o.dep.Placement()
}

// GetCriticalPaths returns, for every registered chain, its current
// top-ranked critical path as an ordered list of service ids. Chains
// whose member services don't form a connected source->sink pair in the
// graph are omitted.
func (o *Orchestrator) GetCriticalPaths() map[string][]string {
	out := make(map[string][]string, len(o.chains))
	for chainID, members := range o.chains {
		if len(members) < 2 {
			continue
		}
		src, dst := members[0], members[len(members)-1]
		scored := o.analyzer.IdentifyCriticalPaths(src, dst)
		if len(scored) == 0 {
			continue
		}
		out[chainID] = scored[0].Path
	}
	return out
}

// GetLatestMetrics returns the most recent MonitoringData snapshot. ok
// is false before the Monitor's first aggregation tick.
func (o *Orchestrator) GetLatestMetrics() (monitor.MonitoringData, bool) {
	return o.mon.LatestSnapshot()
}

// ReportCompletion records one chain execution outcome with the Monitor
// (latency sample plus request/failure counters); the Aggregator does
// not read these.
func (o *Orchestrator) ReportCompletion(chainID string, latencyMs float64, succeeded bool) error {
	return o.mon.ReportCompletion(chainID, latencyMs, succeeded)
}

// LocalUpdate runs one Aggregator gradient step for a node, reading its
// chain/resource stats from the given snapshot. Host services call this
// once per node per refinement round, ahead of Refine.
func (o *Orchestrator) LocalUpdate(nodeID string, stats aggregator.NodeStats) {
	o.agg.LocalUpdate(nodeID, stats)
}

// Node looks up a registered node, translating the not-found case into
// the apperror taxonomy.
func (o *Orchestrator) Node(id string) (*restypes.Node, error) {
	n, err := o.nodes.Get(id)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Service looks up a registered service by id.
func (o *Orchestrator) Service(id string) (*restypes.Service, error) {
	svc, ok := o.graph.Service(id)
	if !ok {
		return nil, apperror.NewWithField(apperror.CodeServiceNotFound, "service not found", "service_id").WithDetails("id", id)
	}
	return svc, nil
}
