package observability

import (
	"log/slog"

	"github.com/google/uuid"
)

// TraceLogger returns log extended with a fresh trace id attribute.
// Each agent transaction is logged under its own tId so interleaved
// debug output from consecutive commands can be told apart.
func TraceLogger(log *slog.Logger) *slog.Logger {
	return OrDefault(log).With("tId", uuid.New().String())
}
