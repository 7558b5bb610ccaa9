package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/autoforgehq/autoforge/internal/common"
	"github.com/autoforgehq/autoforge/internal/interfaces"
)

// Manager bundles the Badger-backed stores behind one lifecycle.
type Manager struct {
	db           *BadgerDB
	jobStorage   interfaces.JobStorage
	probeStorage interfaces.ProbeStorage
}

// NewManager opens the database and constructs the stores.
func NewManager(logger arbor.ILogger, cfg *common.Config) (*Manager, error) {
	db, err := NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:           db,
		jobStorage:   NewJobStorage(db, logger),
		probeStorage: NewProbeStorage(db, logger, cfg.Retention),
	}, nil
}

func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobStorage
}

func (m *Manager) ProbeStorage() interfaces.ProbeStorage {
	return m.probeStorage
}

func (m *Manager) Close() error {
	return m.db.Close()
}
