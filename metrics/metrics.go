// Copyright 2026 RetailNext, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const Namespace = "largefolder"

type cache struct {
	getHitsVec       *prometheus.CounterVec
	getMissesVec     *prometheus.CounterVec
	getPromotionsVec *prometheus.CounterVec
	putsVec          *prometheus.CounterVec
}

type CacheCounters struct {
	Hits       prometheus.Counter
	Misses     prometheus.Counter
	Promotions prometheus.Counter
	Puts       prometheus.Counter
}

func NewCacheCounters(name string) *CacheCounters {
	return &CacheCounters{
		Hits:       Cache.getHitsVec.WithLabelValues(name),
		Misses:     Cache.getMissesVec.WithLabelValues(name),
		Promotions: Cache.getPromotionsVec.WithLabelValues(name),
		Puts:       Cache.putsVec.WithLabelValues(name),
	}
}

var Cache = cache{
	getHitsVec: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "cache",
		Name:      "get_hits_total",
		Help:      "Number of cache gets that were hits.",
	}, []string{"cache"}),
	getMissesVec: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "cache",
		Name:      "get_misses_total",
		Help:      "Number of cache gets that were misses.",
	}, []string{"cache"}),
	getPromotionsVec: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "cache",
		Name:      "promotions_total",
		Help:      "Number of cache gets that resulted in promoting a value from the previous bucket.",
	}, []string{"cache"}),
	putsVec: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "cache",
		Name:      "puts_total",
		Help:      "Number of cache put requests.",
	}, []string{"cache"}),
}

func SetupPrometheus(metricsListenAddress, metricsPath *string) {
	if metricsListenAddress == nil || *metricsListenAddress == "" {
		return
	}
	go func() {
		http.Handle(*metricsPath, promhttp.Handler())
		err := http.ListenAndServe(*metricsListenAddress, nil)
		zap.S().Fatalw("metrics_listen_error", "err", err)
	}()
}

func init() {
	prometheus.MustRegister(Cache.getHitsVec)
	prometheus.MustRegister(Cache.getMissesVec)
	prometheus.MustRegister(Cache.getPromotionsVec)
	prometheus.MustRegister(Cache.putsVec)
}
