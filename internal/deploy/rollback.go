package deploy

import (
	"context"

	"github.com/velonis/blueprint/internal/domain/deploy"
)

// RollbackManager tracks created task IDs in creation order and, on an
// unrecoverable failure, deletes them newest-first so children go before
// their parents. Rollback is best-effort: individual delete failures are
// logged and skipped, and the sweep never raises.
type RollbackManager struct {
	api     WorkspaceAPI
	log     *deploy.RunLog
	created []string
}

// NewRollbackManager returns an empty manager.
func NewRollbackManager(api WorkspaceAPI, log *deploy.RunLog) *RollbackManager {
	return &RollbackManager{api: api, log: log}
}

// Record appends a created task ID.
func (m *RollbackManager) Record(taskID string) {
	m.created = append(m.created, taskID)
}

// Count returns how many creations are recorded.
func (m *RollbackManager) Count() int {
	return len(m.created)
}

// Rollback deletes every recorded task in reverse creation order and
// returns the number successfully deleted.
func (m *RollbackManager) Rollback(ctx context.Context) int {
	deleted := 0
	for i := len(m.created) - 1; i >= 0; i-- {
		id := m.created[i]
		if err := m.api.DeleteTask(ctx, id); err != nil {
			m.log.Warnf("rollback: failed to delete task %s: %v", id, err)
			continue
		}
		m.log.Infof("rollback: deleted task %s", id)
		deleted++
	}
	return deleted
}
