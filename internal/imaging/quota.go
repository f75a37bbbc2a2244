package imaging

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var quotaGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "relist_image_quota_degraded",
	Help: "1 when the last image pipeline failure was quota/429 class",
})

// QuotaFlag records whether the most recent pipeline failure was a
// quota/429 class error. Handlers read it to degrade responses instead
// of retrying immediately.
type QuotaFlag struct {
	degraded atomic.Bool
}

// NewQuotaFlag creates a cleared flag.
func NewQuotaFlag() *QuotaFlag {
	return &QuotaFlag{}
}

// Set records the quota state of the last failure.
func (f *QuotaFlag) Set(degraded bool) {
	f.degraded.Store(degraded)
	if degraded {
		quotaGauge.Set(1)
	} else {
		quotaGauge.Set(0)
	}
}

// Degraded reports whether the last failure was quota class.
func (f *QuotaFlag) Degraded() bool {
	return f.degraded.Load()
}
