package monitoring

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/veilcash/go-veil/monitoring/prometheus"
)

// SetupPrometheus exports the default metrics registry on the given
// endpoint under the veil namespace.
func SetupPrometheus(endpoint string) {
	prometheus.SetNamespace("veil")
	prometheus.PrometheusListener(endpoint, nil)
}

const dbSizeMeasureInterval = 30 * time.Second

var (
	dbDirMonitor atomic.Value
	dbSizeGauge  = metrics.NewRegisteredGauge("db_size", nil)
	dbSizeOnce   sync.Once
)

// SetDataDirMonitor points the db_size gauge at the store directory and
// starts the background measurement loop.
func SetDataDirMonitor(datadir string) {
	dbDirMonitor.Store(datadir)
	dbSizeOnce.Do(func() {
		go func() {
			for {
				dbSizeGauge.Update(measureDbDirMonitor())
				time.Sleep(dbSizeMeasureInterval)
			}
		}()
	})
}

func measureDbDirMonitor() (size int64) {
	datadir, ok := dbDirMonitor.Load().(string)
	if !ok || datadir == "" || datadir == "inmemory" {
		return
	}

	err := filepath.Walk(datadir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return err
	})
	if err != nil {
		log.Error("filepath.Walk", "path", datadir, "err", err)
		return 0
	}

	return
}
