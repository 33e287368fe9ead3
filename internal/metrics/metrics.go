package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	RESULT_SUCCESS = "success"
	RESULT_FAILURE = "failure"
)

var (
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multitek",
			Name:      "refresh_total",
			Help:      "Device list refreshes by tablet and result.",
		},
		[]string{"tablet", "result"},
	)
	CommandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multitek",
			Name:      "command_total",
			Help:      "Relay commands by tablet, command and result.",
		},
		[]string{"tablet", "command", "result"},
	)
	Devices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "multitek",
			Name:      "devices",
			Help:      "Relays in the last snapshot of each tablet.",
		},
		[]string{"tablet"},
	)
	TabletOnline = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "multitek",
			Name:      "tablet_online",
			Help:      "Result of the last status probe (1 online, 0 offline).",
		},
		[]string{"tablet"},
	)
)

func init() {
	prometheus.MustRegister(RefreshTotal, CommandTotal, Devices, TabletOnline)
}

func Result(err error) string {
	if err != nil {
		return RESULT_FAILURE
	}
	return RESULT_SUCCESS
}

func ObserveRefresh(tablet string, devices int, err error) {
	RefreshTotal.WithLabelValues(tablet, Result(err)).Inc()
	if err == nil {
		Devices.WithLabelValues(tablet).Set(float64(devices))
	}
}

func ObserveCommand(tablet, command string, err error) {
	CommandTotal.WithLabelValues(tablet, command, Result(err)).Inc()
}

func ObserveProbe(tablet string, online bool) {
	value := 0.0
	if online {
		value = 1
	}
	TabletOnline.WithLabelValues(tablet).Set(value)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
