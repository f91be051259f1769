package testlog

import (
	"testing"

	"github.com/danmuck/ackwire/internal/logging"
	"github.com/rs/zerolog"
)

// Start returns a debug logger that writes through t.Log.
func Start(t testing.TB) zerolog.Logger {
	t.Helper()
	log := logging.New(logging.ProfileTest, zerolog.NewTestWriter(t)).With().Str("test", t.Name()).Logger()
	log.Info().Msg("test start")
	return log
}
