// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ScanDecisions counts scan outcomes by decision kind.
var ScanDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rfidattend_scan_decisions_total",
	Help: "Scan outcomes by decision kind (CHECK_IN, CHECK_OUT, REJECTED, NO_OP).",
}, []string{"decision"})

// NotifyPublishFailures counts notification messages that could not be
// queued. Notification dispatch is best-effort and never blocks a scan.
var NotifyPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rfidattend_notify_publish_failures_total",
	Help: "Notification queue publish failures.",
})

// AbsenteesMarked counts records created by the bulk absentee pass.
var AbsenteesMarked = promauto.NewCounter(prometheus.CounterOpts{
	Name: "rfidattend_absentees_marked_total",
	Help: "ABSENT records created by the bulk marking pass.",
})
