package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "marquee/internal/domain/consent"
)

func TestMetricsRegistration(t *testing.T) {
	for _, metric := range []prometheus.Collector{
		ConsentDecisionsTotal,
		ConsentRevocationsTotal,
		ConsentReadsTotal,
		HTTPRequestDuration,
		DBQueryDuration,
	} {
		desc := make(chan *prometheus.Desc, 1)
		metric.Describe(desc)
		close(desc)
		require.NotNil(t, <-desc, "metric should have a valid descriptor")
	}
}

func TestRecordDecision(t *testing.T) {
	analyticsGranted := testutil.ToFloat64(ConsentDecisionsTotal.WithLabelValues("analytics", "granted"))
	marketingDenied := testutil.ToFloat64(ConsentDecisionsTotal.WithLabelValues("marketing", "denied"))
	videosDenied := testutil.ToFloat64(ConsentDecisionsTotal.WithLabelValues("youtubeVideos", "denied"))

	RecordDecision(domain.Decision{Necessary: true, Analytics: true})

	assert.Equal(t, analyticsGranted+1, testutil.ToFloat64(ConsentDecisionsTotal.WithLabelValues("analytics", "granted")))
	assert.Equal(t, marketingDenied+1, testutil.ToFloat64(ConsentDecisionsTotal.WithLabelValues("marketing", "denied")))
	assert.Equal(t, videosDenied+1, testutil.ToFloat64(ConsentDecisionsTotal.WithLabelValues("youtubeVideos", "denied")))
}

func TestObserveRequest(t *testing.T) {
	before := testutil.CollectAndCount(HTTPRequestDuration)
	ObserveRequest("GET", "GET /metrics-test", 204, 0.01)
	assert.Equal(t, before+1, testutil.CollectAndCount(HTTPRequestDuration))
}
