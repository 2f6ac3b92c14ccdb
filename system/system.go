// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-co
// SPDX-FileContributor: mochi-co

package system

import (
	"runtime"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Info contains atomic counters and values for the conformance surface's
// statistics. It is deliberately a subset of the original broker's $SYS
// fields: there is no session/retained/inflight bookkeeping here because
// this server keeps none.
type Info struct {
	Version              string `json:"version"`               // the current version of the server
	Started              int64  `json:"started"`               // the time the server started in unix seconds
	Uptime               int64  `json:"uptime"`                // the number of seconds the server has been online
	BytesReceived        int64  `json:"bytes_received"`        // total number of bytes received since start
	BytesSent            int64  `json:"bytes_sent"`            // total number of bytes sent since start
	ClientsConnected     int64  `json:"clients_connected"`     // number of currently connected clients
	ClientsMaximum       int64  `json:"clients_maximum"`       // maximum number of concurrently connected clients observed
	PacketsReceived      int64  `json:"packets_received"`      // total number of packets decoded since start
	PacketsSent          int64  `json:"packets_sent"`          // total number of packets encoded and written since start
	KeepaliveDisconnects int64  `json:"keepalive_disconnects"` // total number of connections closed by keep-alive expiry
}

// Clone makes a copy of Info using atomic operations, safe to call
// concurrently with updates to the live Info.
func (i *Info) Clone() *Info {
	return &Info{
		Version:              i.Version,
		Started:              atomic.LoadInt64(&i.Started),
		Uptime:               atomic.LoadInt64(&i.Uptime),
		BytesReceived:        atomic.LoadInt64(&i.BytesReceived),
		BytesSent:            atomic.LoadInt64(&i.BytesSent),
		ClientsConnected:     atomic.LoadInt64(&i.ClientsConnected),
		ClientsMaximum:       atomic.LoadInt64(&i.ClientsMaximum),
		PacketsReceived:      atomic.LoadInt64(&i.PacketsReceived),
		PacketsSent:          atomic.LoadInt64(&i.PacketsSent),
		KeepaliveDisconnects: atomic.LoadInt64(&i.KeepaliveDisconnects),
	}
}

// RegisterPrometheusMetrics exposes Info's counters and gauges on
// registry, or the default registerer when registry is nil.
func (i *Info) RegisterPrometheusMetrics(registry prometheus.Registerer) {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	type metrics struct {
		metricType string
		name       string
		help       string
		value      *int64
	}

	metricsList := []metrics{
		{"c", "bytes_received", "A count of total number of bytes received", &i.BytesReceived},
		{"c", "bytes_sent", "A counter total number of bytes sent", &i.BytesSent},
		{"g", "clients_connected", "A gauge of number of currently connected clients", &i.ClientsConnected},
		{"c", "clients_maximum", "A count of maximum number of clients that have been connected", &i.ClientsMaximum},
		{"c", "packets_received", "A counter of the total number of packets received", &i.PacketsReceived},
		{"c", "packets_sent", "A counter of the total number of packets sent", &i.PacketsSent},
		{"c", "keepalive_disconnects", "A counter of connections closed by keep-alive expiry", &i.KeepaliveDisconnects},
	}

	for _, m := range metricsList {
		m := m
		fn := func() float64 {
			return float64(atomic.LoadInt64(m.value))
		}

		switch m.metricType {
		case "c":
			registry.MustRegister(
				prometheus.NewCounterFunc(
					prometheus.CounterOpts{
						Name: m.name,
						Help: m.help,
					},
					fn,
				),
			)
		case "g":
			registry.MustRegister(
				prometheus.NewGaugeFunc(
					prometheus.GaugeOpts{
						Name: m.name,
						Help: m.help,
					},
					fn,
				),
			)
		}
	}

	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build Information",
		},
		[]string{"goversion", "version"},
	)
	registry.MustRegister(buildInfo)
	buildInfo.With(prometheus.Labels{"goversion": runtime.Version(), "version": i.Version}).Set(1)
}
