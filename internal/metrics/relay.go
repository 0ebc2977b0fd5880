package metrics

// Payload sources for RelayMessagesTotal
const (
	SourceLocal  = "local"
	SourceBridge = "bridge"
)

// RelayPeerConnected records a newly registered relay peer
func (m *Metrics) RelayPeerConnected() {
	m.safeExecute("RelayPeerConnected", func() {
		m.RelayConnectionsTotal.Inc()
		m.RelayConnectionsActive.Inc()
	})
}

// RelayPeerDisconnected records an unregistered relay peer
func (m *Metrics) RelayPeerDisconnected() {
	m.safeExecute("RelayPeerDisconnected", func() {
		m.RelayConnectionsActive.Dec()
	})
}

// RecordRelayMessage counts one payload entering the fan-out
func (m *Metrics) RecordRelayMessage(source string) {
	m.safeExecute("RecordRelayMessage", func() {
		m.RelayMessagesTotal.WithLabelValues(source).Inc()
	})
}

// RecordFanoutFailure counts one payload that could not be queued for a peer
func (m *Metrics) RecordFanoutFailure() {
	m.safeExecute("RecordFanoutFailure", func() {
		m.RelayFanoutFailures.Inc()
	})
}

// RecordBridgeError counts a cross-instance bridge failure
func (m *Metrics) RecordBridgeError(operation string) {
	m.safeExecute("RecordBridgeError", func() {
		m.RelayBridgeErrors.WithLabelValues(operation).Inc()
	})
}
