package observability

import (
	"github.com/danmuck/ackwire/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the runtime logger for app and installs it as the
// process default used by gin middleware and command entrypoints.
func InitLogger(app string) zerolog.Logger {
	logger := logging.Runtime(app)
	log.Logger = logger
	return logger
}
