package mixer

import (
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	depositCounter  = metrics.NewRegisteredCounter("mixer/deposits", nil)
	commitCounter   = metrics.NewRegisteredCounter("mixer/commits", nil)
	admitCounter    = metrics.NewRegisteredCounter("mixer/admitted", nil)
	disburseCounter = metrics.NewRegisteredCounter("mixer/disbursed", nil)
	retryCounter    = metrics.NewRegisteredCounter("mixer/retries", nil)
	escalateCounter = metrics.NewRegisteredCounter("mixer/escalated", nil)
	rebuildCounter  = metrics.NewRegisteredCounter("mixer/rebuilds", nil)
	queueLiveGauge  = metrics.NewRegisteredGauge("mixer/queue/live", nil)
)
