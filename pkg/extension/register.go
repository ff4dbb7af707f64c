package extension

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"modernc.org/sqlite"

	"github.com/sahithikokkula/sqlite-hll/pkg/aggregate"
)

var ErrWindowInverse = errors.New(FunctionName + " cannot remove rows from a sketch")

var (
	registerOnce sync.Once
	registerErr  error
)

// Register binds ext to approx_count_distinct for every connection the sqlite
// driver opens afterwards. The driver keeps one registry per process, so only
// the first call has an effect; later calls return its result.
func Register(ext *Extension) error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterFunction(FunctionName, &sqlite.FunctionImpl{
			NArgs:         1,
			Deterministic: true,
			MakeAggregate: func(ctx sqlite.FunctionContext) (sqlite.AggregateFunction, error) {
				return &group{ext: ext}, nil
			},
		})

		if registerErr != nil {
			registerErr = fmt.Errorf("registering %s: %w", FunctionName, registerErr)
			return
		}

		ext.logger.Info("Registered aggregate function",
			"fn", FunctionName,
			"relative_error", ext.manager.Policy().RelativeError,
			"precision", ext.manager.Precision(),
		)
	})

	return registerErr
}

// group is one evaluation of the aggregate. The driver creates it on the first
// step of a group, or at finalize when the group had no rows.
type group struct {
	ext  *Extension
	slot aggregate.Slot
}

func (g *group) Step(_ *sqlite.FunctionContext, rowArgs []driver.Value) error {
	return g.ext.OnRow(&g.slot, rowArgs)
}

func (g *group) WindowInverse(_ *sqlite.FunctionContext, _ []driver.Value) error {
	return ErrWindowInverse
}

func (g *group) WindowValue(_ *sqlite.FunctionContext) (driver.Value, error) {
	return g.ext.OnFinalize(&g.slot), nil
}

func (g *group) Final(_ *sqlite.FunctionContext) {}
