package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGetReturnsSingleton(t *testing.T) {
	if Get() != Get() {
		t.Fatal("expected the same metrics instance")
	}
}

func TestRecordResolution(t *testing.T) {
	m := Get()
	before := testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("CONFIRMED", "ok"))

	m.RecordResolution("CONFIRMED", "ok")

	after := testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("CONFIRMED", "ok"))
	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestSetChannelLive(t *testing.T) {
	m := Get()

	m.SetChannelLive(true)
	if v := testutil.ToFloat64(m.ChannelLive); v != 1 {
		t.Errorf("expected 1, got %v", v)
	}

	m.SetChannelLive(false)
	if v := testutil.ToFloat64(m.ChannelLive); v != 0 {
		t.Errorf("expected 0, got %v", v)
	}
}
