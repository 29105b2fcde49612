package asset

import "github.com/aretw0/introspection"

// ManagerState exposes internal state for observability.
type ManagerState struct {
	Root            string `json:"root"`
	Grants          int    `json:"grants"`
	GrantedRecords  int    `json:"granted_records"`
	PendingCaptures int    `json:"pending_captures"`
	Mirrored        bool   `json:"mirrored"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ManagerState{
		Root:            m.root,
		Grants:          len(m.tokens),
		GrantedRecords:  len(m.grants),
		PendingCaptures: len(m.captures),
		Mirrored:        m.mirror != nil,
	}
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "asset-manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
