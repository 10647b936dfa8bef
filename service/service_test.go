package service

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kestrel-http/engine/config"
	"github.com/kestrel-http/engine/pipeline"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(zap.NewNop(), config.Defaults(config.ProfileBalanced), prometheus.NewRegistry())
	require.NoError(t, err)
	return svc
}

func TestNewGeneratesNonEmptySecret(t *testing.T) {
	svc := newTestService(t)
	require.NotEmpty(t, svc.Secret)

	other := newTestService(t)
	require.NotEqual(t, svc.Secret, other.Secret, "each process Service gets its own random secret")
}

func TestRegisterAndLookupStage(t *testing.T) {
	svc := newTestService(t)
	st := &pipeline.Stage{Name: "echoHandler", Kind: pipeline.KindHandler}
	svc.RegisterStage(st)

	got, ok := svc.Stage("echoHandler")
	require.True(t, ok)
	require.Same(t, st, got)

	_, ok = svc.Stage("missing")
	require.False(t, ok)
}

func TestRegisterStagePanicsOnDuplicateName(t *testing.T) {
	svc := newTestService(t)
	svc.RegisterStage(&pipeline.Stage{Name: "dup", Kind: pipeline.KindFilter})
	require.Panics(t, func() {
		svc.RegisterStage(&pipeline.Stage{Name: "dup", Kind: pipeline.KindFilter})
	})
}

func TestNextConnSeqIncrementsMonotonically(t *testing.T) {
	svc := newTestService(t)
	first := svc.NextConnSeq()
	second := svc.NextConnSeq()
	require.Equal(t, first+1, second)
}

func TestNewMetricsRegistersAllInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ActiveConnections.Inc()
	m.QueueSuspends.Inc()
	m.AuthFailures.WithLabelValues("basic").Inc()
	m.BytesTransmitted.Add(128)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
