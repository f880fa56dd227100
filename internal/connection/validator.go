// Package connection tests candidate storage configurations against the data
// API before they are saved.
package connection

import (
	"context"
	"errors"
	"sync"

	"github.com/datalab/connectctl/internal/logging"
	"github.com/datalab/connectctl/internal/models"
	"github.com/datalab/connectctl/internal/result"
)

// ErrSuperseded is returned for a test whose result arrived after a newer test
// or a reset.
var ErrSuperseded = errors.New("connection test superseded")

// Tester submits a configuration to the test endpoint. A nil error means the
// connection works.
type Tester interface {
	TestConnection(ctx context.Context, req models.TestConnectionRequest) error
}

// Validator tracks the single logical connection test of a wizard. Every test
// and every reset starts a new generation; responses from an older generation
// are discarded.
type Validator struct {
	tester Tester
	logger *logging.Logger

	mu         sync.Mutex
	generation uint64
	current    result.Result[struct{}]
}

// NewValidator creates a validator using tester.
func NewValidator(tester Tester, logger *logging.Logger) *Validator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Validator{tester: tester, logger: logger}
}

// Test submits the configuration and blocks until the tester answers. The
// returned generation identifies this test. If a newer test or a reset
// happened meanwhile, the result is Failed(ErrSuperseded) and the validator's
// state is left to the newer generation.
func (v *Validator) Test(ctx context.Context, cfg models.Configuration, sourcePath string) (uint64, result.Result[struct{}]) {
	v.mu.Lock()
	v.generation++
	gen := v.generation
	v.current = result.Start[struct{}]()
	v.mu.Unlock()

	v.logger.Debug().Uint64("generation", gen).Str("type", cfg.Type()).Msg("Testing connection")

	err := v.tester.TestConnection(ctx, models.TestConnectionRequest{
		Configuration: cfg.Clone(),
		SourcePath:    sourcePath,
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		v.logger.Debug().Uint64("generation", gen).Msg("Discarding superseded connection test")
		return gen, result.Fail[struct{}](ErrSuperseded)
	}
	if err != nil {
		v.current = result.Fail[struct{}](err)
	} else {
		v.current = result.Ok(struct{}{})
	}
	return gen, v.current
}

// Reset discards the current result and any in-flight test.
func (v *Validator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generation++
	v.current = result.Result[struct{}]{}
}

// Result returns the state of the current generation.
func (v *Validator) Result() result.Result[struct{}] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Succeeded reports whether the current generation passed.
func (v *Validator) Succeeded() bool {
	return v.Result().IsSucceeded()
}

// Generation returns the current generation.
func (v *Validator) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.generation
}
