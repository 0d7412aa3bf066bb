package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/secmon-lab/storyweaver/pkg/domain/model"
	"github.com/secmon-lab/storyweaver/pkg/observability"
)

func TestMetrics(t *testing.T) {
	m := observability.NewMetrics()

	m.ObserveIngest(3)
	m.ObserveRequest("outline", "ok")
	m.ObserveModelAttempt("outline", "transient", 2*time.Second)
	m.ObserveModelAttempt("outline", "success", time.Second)
	m.ObserveRepair("outline", model.RepairReport{ReferencesKept: 4, ReferencesDropped: 1, UnsupportedItems: 2, ItemsDropped: 3, SectionsDropped: 1})

	gt.Value(t, testutil.ToFloat64(m.SegmentsIngestedTotal)).Equal(3.0)
	gt.Value(t, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("outline", "ok"))).Equal(1.0)
	gt.Value(t, testutil.ToFloat64(m.ModelAttemptsTotal.WithLabelValues("outline", "transient"))).Equal(1.0)
	gt.Value(t, testutil.ToFloat64(m.ReferencesTotal.WithLabelValues("outline", "kept"))).Equal(4.0)
	gt.Value(t, testutil.ToFloat64(m.ReferencesTotal.WithLabelValues("outline", "dropped"))).Equal(1.0)
	gt.Value(t, testutil.ToFloat64(m.UnsupportedItemsTotal.WithLabelValues("outline"))).Equal(2.0)
	gt.Value(t, testutil.ToFloat64(m.ItemsDroppedTotal.WithLabelValues("outline"))).Equal(3.0)
	gt.Value(t, testutil.ToFloat64(m.SectionsDroppedTotal)).Equal(1.0)

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	resp, err := http.Get(srv.URL)
	gt.NoError(t, err).Required()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	gt.NoError(t, err).Required()
	gt.String(t, string(body)).Contains("storyweaver_segments_ingested_total 3")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *observability.Metrics
	m.ObserveIngest(1)
	m.ObserveRequest("ingest", "ok")
	m.ObserveModelAttempt("outline", "success", time.Second)
	m.ObserveRepair("outline", model.RepairReport{})
	gt.Value(t, m.Handler()).NotNil()
}
