// Package logger builds the zap logger shared by every component.
//
// Production mode writes JSON entries with ISO8601 timestamps; development
// mode writes colored console entries. Both write to stderr.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	defer log.Sync()
//	log.Info("session ready", zap.String("session_id", id))
package logger
