package bot

import (
	"fmt"

	"github.com/jholhewres/autoresponder/pkg/autoresponder/triggers"
)

// OpenBackend opens the trigger backend selected by cfg. The returned close
// function releases backend resources and is never nil.
func OpenBackend(cfg TriggersConfig) (triggers.Backend, func() error, error) {
	switch cfg.Backend {
	case BackendFile, "":
		return triggers.NewFileBackend(cfg.Path), func() error { return nil }, nil
	case BackendSQLite:
		b, err := triggers.OpenSQLiteBackend(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown trigger backend %q", cfg.Backend)
	}
}
