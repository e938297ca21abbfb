// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/word2pdf/internal/container"
	"github.com/pdiddy/word2pdf/pkg/types"
)

// factory builds a converter for one backend, returning an error wrapping
// ErrBackendUnavailable when the engine behind it is missing.
type factory func(ctx context.Context, cfg types.Config) (Converter, error)

var factories = map[types.Backend]factory{
	types.BackendWord: func(context.Context, types.Config) (Converter, error) {
		return NewWordConverter()
	},
	types.BackendSoffice: func(_ context.Context, cfg types.Config) (Converter, error) {
		return NewSofficeConverter(cfg.Office)
	},
	types.BackendGotenberg: func(ctx context.Context, cfg types.Config) (Converter, error) {
		g, err := NewGotenbergConverter(cfg.Gotenberg)
		if err != nil {
			return nil, err
		}
		if err := g.Ping(ctx); err != nil {
			return nil, err
		}
		return g, nil
	},
	types.BackendContainer: func(_ context.Context, cfg types.Config) (Converter, error) {
		rt, err := container.DetectRuntime()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return NewContainerConverter(rt, cfg.Container)
	},
}

// New returns the converter for backend. BackendAuto (or empty) picks the
// first available backend in types.Backends order; gotenberg is only
// considered when a URL is configured.
func New(ctx context.Context, backend types.Backend, cfg types.Config, logger *zap.Logger) (Converter, error) {
	return newFrom(ctx, backend, cfg, logger, factories)
}

func newFrom(ctx context.Context, backend types.Backend, cfg types.Config, logger *zap.Logger, fs map[types.Backend]factory) (Converter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backend != "" && backend != types.BackendAuto {
		f, ok := fs[backend]
		if !ok {
			return nil, fmt.Errorf("%w: %q (want auto, %s)", ErrUnknownBackend, backend, backendList())
		}
		return f(ctx, cfg)
	}

	var errs []error
	for _, b := range types.Backends {
		if b == types.BackendGotenberg && cfg.Gotenberg.URL == "" {
			continue
		}
		f, ok := fs[b]
		if !ok {
			continue
		}
		c, err := f(ctx, cfg)
		if err == nil {
			logger.Debug("backend selected", zap.String("backend", string(b)))
			return c, nil
		}
		logger.Debug("backend unavailable", zap.String("backend", string(b)), zap.Error(err))
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: no backend available: %w", ErrBackendUnavailable, errors.Join(errs...))
}

// BackendStatus reports whether one backend can be used on this machine.
type BackendStatus struct {
	Backend   types.Backend `json:"backend" yaml:"backend"`
	Available bool          `json:"available" yaml:"available"`
	Detail    string        `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Probe checks every backend in types.Backends order.
func Probe(ctx context.Context, cfg types.Config) []BackendStatus {
	return probeFrom(ctx, cfg, factories)
}

func probeFrom(ctx context.Context, cfg types.Config, fs map[types.Backend]factory) []BackendStatus {
	out := make([]BackendStatus, 0, len(types.Backends))
	for _, b := range types.Backends {
		st := BackendStatus{Backend: b}
		if f, ok := fs[b]; ok {
			if _, err := f(ctx, cfg); err != nil {
				st.Detail = err.Error()
			} else {
				st.Available = true
			}
		}
		out = append(out, st)
	}
	return out
}

func backendList() string {
	names := make([]string, 0, len(types.Backends))
	for _, b := range types.Backends {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}
