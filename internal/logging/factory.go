package logging

import (
	"fmt"
	"io"
	"log/slog"
)

// Backend names accepted by New.
const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// New builds a Logger for the named backend. The slog backend writes JSON to w.
func New(backend string, w io.Writer) (Logger, error) {
	switch backend {
	case "", BackendSlog:
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, nil))), nil
	case BackendZap:
		return NewProductionZapLogger()
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}
