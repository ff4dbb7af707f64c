// Package extension routes SQL aggregate calls into the sketch state manager
// and registers approx_count_distinct with modernc.org/sqlite.
package extension

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sahithikokkula/sqlite-hll/pkg/aggregate"
	"github.com/sahithikokkula/sqlite-hll/pkg/canonical"
)

const FunctionName = "approx_count_distinct"

var ErrArity = errors.New(FunctionName + " takes exactly one argument")

// Extension is built once at startup and is read-only afterwards. Every entry
// point receives it explicitly instead of reaching for package state.
type Extension struct {
	manager *aggregate.Manager
	logger  *slog.Logger
}

func New(manager *aggregate.Manager, logger *slog.Logger) *Extension {
	if logger == nil {
		logger = slog.Default()
	}

	return &Extension{
		manager: manager,
		logger:  logger,
	}
}

func (e *Extension) Manager() *aggregate.Manager {
	return e.manager
}

// OnRow feeds one row of a group into slot. Nulls are skipped. On error the
// slot is left exactly as it was.
func (e *Extension) OnRow(slot *aggregate.Slot, args []driver.Value) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: got %d", ErrArity, len(args))
	}

	var (
		arg = args[0]
		tag = canonical.TagOf(arg)
	)

	value, ok, err := canonical.Canonicalize(tag, arg)
	if err != nil {
		return fmt.Errorf("%s: %w", FunctionName, err)
	}

	if ok {
		e.manager.Insert(slot, value)
	}

	return nil
}

// OnFinalize returns the group's estimate.
func (e *Extension) OnFinalize(slot *aggregate.Slot) float64 {
	return e.manager.Estimate(slot)
}

// Estimate runs a complete aggregation over values, as the host would for a
// single group.
func (e *Extension) Estimate(values []driver.Value) (float64, error) {
	var (
		slot aggregate.Slot
		args = make([]driver.Value, 1)
	)

	for _, v := range values {
		args[0] = v
		if err := e.OnRow(&slot, args); err != nil {
			return 0, err
		}
	}

	return e.OnFinalize(&slot), nil
}
