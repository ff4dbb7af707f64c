// Package aggregate owns the per-group sketch state of approx_count_distinct.
//
// The host hands the same Slot to every step call of a group and once more to
// finalize. A zero Slot is uninitialized; the first insertion builds a sketch
// with the manager's Policy and commits it back into the Slot.
package aggregate

import (
	"fmt"

	"github.com/sahithikokkula/sqlite-hll/pkg/canonical"
	"github.com/sahithikokkula/sqlite-hll/pkg/sketches"
)

// DefaultRelativeError matches the Redis HyperLogLog default.
const DefaultRelativeError = 0.0081

// Policy is the accuracy target every group is created with.
type Policy struct {
	RelativeError float64
}

func DefaultPolicy() Policy {
	return Policy{RelativeError: DefaultRelativeError}
}

// Slot is the state region of one aggregation group.
type Slot struct {
	initialized bool
	sketch      sketches.HyperLogLog
}

func (s *Slot) Initialized() bool {
	return s.initialized
}

// Manager applies a fixed Policy to every Slot it touches. It is immutable
// and may be shared by any number of groups.
type Manager struct {
	policy    Policy
	precision uint8
}

func NewManager(policy Policy) (*Manager, error) {
	precision, err := sketches.PrecisionFor(policy.RelativeError)
	if err != nil {
		return nil, fmt.Errorf("invalid accuracy policy: %w", err)
	}

	return &Manager{
		policy:    policy,
		precision: precision,
	}, nil
}

func (m *Manager) Policy() Policy {
	return m.policy
}

func (m *Manager) Precision() uint8 {
	return m.precision
}

// StandardError is the theoretical relative standard error of every sketch
// this manager creates.
func (m *Manager) StandardError() float64 {
	return sketches.StandardErrorFor(m.precision)
}

// Insert adds v to the group held by slot, creating the sketch on first use.
func (m *Manager) Insert(slot *Slot, v canonical.Value) {
	sketch := slot.sketch
	if !slot.initialized {
		sketch = *sketches.NewHyperLogLogWithPrecision(m.precision)
	}

	sketch.Insert(v)

	*slot = Slot{
		initialized: true,
		sketch:      sketch,
	}
}

// Estimate returns the group's cardinality estimate. A slot that never saw a
// row estimates exactly 0.
func (m *Manager) Estimate(slot *Slot) float64 {
	if !slot.initialized {
		return 0
	}

	return slot.sketch.Estimate()
}
