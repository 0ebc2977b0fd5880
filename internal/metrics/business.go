package metrics

// IncrementWorkspaceCreated increments workspace creation counter
func (m *Metrics) IncrementWorkspaceCreated() {
	m.safeExecute("IncrementWorkspaceCreated", func() {
		m.WorkspaceCreatedTotal.Inc()
	})
}

// SetWorkspacesTotal sets total workspaces gauge
func (m *Metrics) SetWorkspacesTotal(count int64) {
	m.safeExecute("SetWorkspacesTotal", func() {
		m.WorkspacesTotal.Set(float64(count))
	})
}

// RecordSnapshotArchived counts an archive attempt by result ("success" or "error")
func (m *Metrics) RecordSnapshotArchived(result string) {
	m.safeExecute("RecordSnapshotArchived", func() {
		m.SnapshotArchivedTotal.WithLabelValues(result).Inc()
	})
}
