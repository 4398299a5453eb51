package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	twerrors "tweetwatch/pkg/errors"
)

func TestCycleOutcomes(t *testing.T) {
	m := New()

	m.CycleFinished(time.Second, nil)
	m.CycleFinished(time.Second, errors.New("boom"))
	m.CycleFinished(time.Second, twerrors.LaunchFailure(errors.New("no chrome")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("fatal")))
}

func TestFetchAndDeliveryResults(t *testing.T) {
	m := New()

	m.Fetched(false, nil)
	m.Fetched(true, nil)
	m.Fetched(false, errors.New("net::ERR_NAME_NOT_RESOLVED"))
	m.Delivered("view", false, nil)
	m.Delivered("view", true, errors.New("throttled"))
	m.Delivered("sound", false, errors.New("no espeak"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("view", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("view", "dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("sound", "error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CycleFinished(time.Second, nil)
		m.TickSkipped()
		m.Fetched(true, nil)
		m.PostsExtracted("structured", 3)
		m.NewPost("alice")
		m.Delivered("view", false, nil)
		m.SetTrackedAccounts(2)
		m.SetSeenPosts(10)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.NewPost("alice")
	m.PostsExtracted("heuristic", 4)
	m.SetTrackedAccounts(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `tweetwatch_new_posts_total{account="alice"} 1`), body)
	assert.Contains(t, body, `tweetwatch_posts_extracted_total{strategy="heuristic"} 4`)
	assert.Contains(t, body, "tweetwatch_tracked_accounts 2")
	assert.Contains(t, body, "go_goroutines")
}
