package notify

import "expvar"

var (
	metricNotifyQueuedTotal       = expvar.NewInt("duel_notify_queued_total")
	metricNotifyDroppedTotal      = expvar.NewInt("duel_notify_dropped_total")
	metricNotifyRetryTotal        = expvar.NewInt("duel_notify_retry_total")
	metricNotifyRetryDroppedTotal = expvar.NewInt("duel_notify_retry_dropped_total")
	metricNotifySentTotal         = expvar.NewInt("duel_notify_sent_total")
	metricNotifyFailedTotal       = expvar.NewInt("duel_notify_failed_total")
	metricNotifyCircuitOpenTotal  = expvar.NewInt("duel_notify_circuit_open_total")
	metricNotifyQueueLen          = expvar.NewInt("duel_notify_queue_len")
)
