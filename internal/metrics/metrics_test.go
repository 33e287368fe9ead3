package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRefresh(t *testing.T) {
	ObserveRefresh("metrics_test", 3, nil)
	ObserveRefresh("metrics_test", 0, errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(RefreshTotal.WithLabelValues("metrics_test", RESULT_SUCCESS)))
	assert.Equal(t, 1.0, testutil.ToFloat64(RefreshTotal.WithLabelValues("metrics_test", RESULT_FAILURE)))
	// failed refresh keeps the last count
	assert.Equal(t, 3.0, testutil.ToFloat64(Devices.WithLabelValues("metrics_test")))
}

func TestObserveProbe(t *testing.T) {
	ObserveProbe("metrics_test", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(TabletOnline.WithLabelValues("metrics_test")))
	ObserveProbe("metrics_test", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(TabletOnline.WithLabelValues("metrics_test")))
}
