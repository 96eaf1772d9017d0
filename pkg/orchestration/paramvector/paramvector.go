// Package paramvector defines the shared, mutable parameter vector that
// tunes the critical-path analyzer, the deployer's refinement threshold,
// and the aggregator's learning rate. It is the one piece of state every
// closed-loop component reads and the aggregator is the only component
// allowed to write to, via ApplyUpdate.
package paramvector

import (
	"math"
	"sync"

	"orchestrator/pkg/apperror"
)

// Default weights and thresholds: the three criticality weights sum to
// 1, the refinement migration threshold is conservative, and the
// overload/adaptation knobs favor stability over reactivity.
const (
	DefaultAlpha     = 0.40 // temporal criticality weight
	DefaultBeta      = 0.35 // resource criticality weight
	DefaultGamma     = 0.25 // dependency criticality weight
	DefaultTau       = 0.70 // critical-path composite score threshold
	DefaultUth       = 0.80 // overload threshold, the enumerated utilizationThreshold option
	DefaultScaling   = 0.30 // migration cost-improvement scaling
	DefaultAdaptRate = 0.50 // aggregator learning rate
)

// weightSumTolerance bounds how far alpha+beta+gamma may drift from 1.0
// before ApplyUpdate snaps the weights back to the last valid vector.
const weightSumTolerance = 1e-6

// Vector is the tunable parameter set, guarded for concurrent reads from
// every orchestration component and concurrent writes from the aggregator.
type Vector struct {
	mu sync.RWMutex

	alpha, beta, gamma float64
	tau                float64
	uth                float64
	scaling            float64
	adaptRate          float64
}

// Option configures an optional Vector field away from its documented
// default at construction time.
type Option func(*Vector)

// WithOverloadThreshold seeds uth away from DefaultUth. The value must
// lie in (0,1]; an out-of-range value is ignored and the default is
// kept, since New has no error return.
func WithOverloadThreshold(uth float64) Option {
	return func(v *Vector) {
		if uth > 0 && uth <= 1 {
			v.uth = uth
		}
	}
}

// New creates a parameter vector initialized to the documented defaults,
// with any opts applied on top.
func New(opts ...Option) *Vector {
	v := &Vector{
		alpha: DefaultAlpha, beta: DefaultBeta, gamma: DefaultGamma,
		tau: DefaultTau, uth: DefaultUth,
		scaling: DefaultScaling, adaptRate: DefaultAdaptRate,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Weights returns the current (alpha, beta, gamma) criticality weights.
func (v *Vector) Weights() (alpha, beta, gamma float64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.alpha, v.beta, v.gamma
}

// Threshold returns the critical-path composite score cutoff tau.
func (v *Vector) Threshold() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tau
}

// OverloadThreshold returns the utilization fraction above which a node is
// considered overloaded.
func (v *Vector) OverloadThreshold() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.uth
}

// Scaling returns the migration cost-improvement scaling factor used by
// the deployer's refinement phase.
func (v *Vector) Scaling() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.scaling
}

// AdaptRate returns the aggregator's learning rate.
func (v *Vector) AdaptRate() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.adaptRate
}

// SetThreshold validates and sets tau. tau must lie in [0,1].
func (v *Vector) SetThreshold(tau float64) error {
	if tau < 0 || tau > 1 {
		return apperror.NewWithField(apperror.CodeInvalidThreshold, "threshold must be in [0,1]", "tau").WithDetails("tau", tau)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tau = tau
	return nil
}

// SetOverloadThreshold validates and sets uth. uth must lie in (0,1].
func (v *Vector) SetOverloadThreshold(uth float64) error {
	if uth <= 0 || uth > 1 {
		return apperror.NewWithField(apperror.CodeInvalidThreshold, "overload threshold must be in (0,1]", "uth").WithDetails("uth", uth)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.uth = uth
	return nil
}

// UpdateWeights sets new (alpha, beta, gamma) weights after z-score
// renormalization by the caller. If the normalized weights still fail to
// sum to 1 within tolerance, the update is rejected and the vector snaps
// back to (silently keeps) its current weights: a bad update must never
// leave the vector in an invalid state.
func (v *Vector) UpdateWeights(alpha, beta, gamma float64) error {
	sum := alpha + beta + gamma
	if math.Abs(sum-1.0) > weightSumTolerance {
		return apperror.New(apperror.CodeInvalidWeights, "weights do not sum to 1 within tolerance").
			WithDetails("alpha", alpha).WithDetails("beta", beta).WithDetails("gamma", gamma).WithDetails("sum", sum)
	}
	if alpha < 0 || beta < 0 || gamma < 0 {
		return apperror.New(apperror.CodeInvalidWeights, "weights must be non-negative")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alpha, v.beta, v.gamma = alpha, beta, gamma
	return nil
}

// ResetWeightsToDefault restores (alpha, beta, gamma) to their documented
// defaults, used when a weight update fails validation.
func (v *Vector) ResetWeightsToDefault() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alpha, v.beta, v.gamma = DefaultAlpha, DefaultBeta, DefaultGamma
}

// SetScaling sets the migration cost-improvement scaling factor used by
// the deployer's refinement phase. Must lie in (0,1].
func (v *Vector) SetScaling(scaling float64) error {
	if scaling <= 0 || scaling > 1 {
		return apperror.New(apperror.CodeInvalidArgument, "scaling must be in (0,1]").WithDetails("scaling", scaling)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.scaling = scaling
	return nil
}

// SetAdaptRate validates and sets the aggregator's learning rate, which
// must lie in (0,1].
func (v *Vector) SetAdaptRate(rate float64) error {
	if rate <= 0 || rate > 1 {
		return apperror.New(apperror.CodeInvalidArgument, "adapt rate must be in (0,1]").WithDetails("rate", rate)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.adaptRate = rate
	return nil
}

// Snapshot is an immutable copy of the vector's values, safe to read
// without further locking.
type Snapshot struct {
	Alpha, Beta, Gamma float64
	Tau                float64
	Uth                float64
	Scaling            float64
	AdaptRate          float64
}

// Snapshot returns a consistent point-in-time copy of every field.
func (v *Vector) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Snapshot{
		Alpha: v.alpha, Beta: v.beta, Gamma: v.gamma,
		Tau: v.tau, Uth: v.uth,
		Scaling: v.scaling, AdaptRate: v.adaptRate,
	}
}
