// Package metrics sets up the root tally scope of the daemon and the HTTP
// mux exposing it.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a-liut/fogplace/pkg/config"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	tallyprom "github.com/uber-go/tally/v4/prometheus"
)

// InitMetricScope returns a root scope, its closer and a mux serving /health
// and, when metrics are enabled, the Prometheus exposition at /metrics.
func InitMetricScope(cfg config.MetricsConfig, root string) (tally.Scope, io.Closer, *http.ServeMux) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}

	if !cfg.Enable {
		log.Warn("No metrics backend configured, metrics are discarded")
		scope, closer := tally.NewRootScope(tally.ScopeOptions{
			Prefix:   root,
			Reporter: tally.NullStatsReporter,
		}, interval)
		return scope, closer, mux
	}

	// prometheus rejects "-" in metric names
	root = strings.Replace(root, "-", "_", -1)
	reporter := tallyprom.NewReporter(tallyprom.Options{})

	log.Info("Setting up prometheus metrics handler at /metrics")
	mux.Handle("/metrics", reporter.HTTPHandler())

	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         root,
		Tags:           map[string]string{},
		CachedReporter: reporter,
		Separator:      tallyprom.DefaultSeparator,
	}, interval)
	return scope, closer, mux
}
