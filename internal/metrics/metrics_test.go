package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncMutation("register", "ok")
	m.AddRegistrationItems("registered", 3)
	m.IncVerification("verified", "")
	m.ObserveClient("local", "exists", time.Millisecond)
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncMutation("register", "ok")
	m.IncMutation("register", "ok")
	m.AddRegistrationItems("failed", 2)
	m.AddRegistrationItems("failed", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("register", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RegistrationItems.WithLabelValues("failed")))
}
