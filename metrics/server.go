package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kbacha/fbagreement/log"
)

// StartCollectingMetrics begins serving metrics on :metricsPort/metrics,
// listening on every interface.
func StartCollectingMetrics(metricsPort int) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		err := http.ListenAndServe(fmt.Sprintf(":%d", metricsPort), nil)
		log.GetLogger().With().Warning("metrics server stopped", log.Err(err))
	}()
}
