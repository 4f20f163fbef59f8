package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When options carry values", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the manager should use them", func() {
				So(m.namespace, ShouldEqual, "test")
				So(m.subsystem, ShouldEqual, "unit")
				So(m.histogramBuckets, ShouldResemble, []float64{1, 10})
				So(m.registry, ShouldEqual, registry)
			})
		})

		Convey("When options are empty", func() {
			m := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should remain", func() {
				So(m.namespace, ShouldEqual, "formeval")
				So(m.subsystem, ShouldEqual, "rating")
				So(m.histogramBuckets, ShouldNotBeEmpty)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(registry))

		Convey("When a counter is incremented", func() {
			m.submissionsSaved.Inc()
			m.storeErrors.WithLabelValues("save").Inc()

			Convey("Then the registry should expose it", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "formeval_rating_submissions_saved_total")
				So(names, ShouldContain, "formeval_store_errors_total")
			})
		})

		Convey("When a second manager shares the registry", func() {
			Convey("Then registration should panic on duplicates", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording workflow metrics", func() {
			before := testutil.ToFloat64(globalManager.submissionsSaved)
			RecordSubmissionSaved()
			RecordSubmissionSaved()

			dupBefore := testutil.ToFloat64(globalManager.submissionsDuplicate)
			RecordSubmissionDuplicate()

			RecordSubmissionRejected("invalid_score")
			RecordSessionStarted()
			RecordSessionCompleted()
			UpdateActiveSessions(3)

			Convey("Then counters and gauges should reflect it", func() {
				So(testutil.ToFloat64(globalManager.submissionsSaved), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.submissionsDuplicate), ShouldEqual, dupBefore+1)
				So(testutil.ToFloat64(globalManager.submissionsRejected.WithLabelValues("invalid_score")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.activeSessions), ShouldEqual, 3)
			})
		})

		Convey("When recording store metrics", func() {
			UpdateRecordsTotal(42)
			errBefore := testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("load"))
			RecordStoreError("load")

			Convey("Then the values should be visible", func() {
				So(testutil.ToFloat64(globalManager.recordsTotal), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.storeErrors.WithLabelValues("load")), ShouldEqual, errBefore+1)
				So(func() { RecordStoreLatency("save", 3.5) }, ShouldNotPanic)
			})
		})

		Convey("When recording remote metrics", func() {
			pushBefore := testutil.ToFloat64(globalManager.remotePushes)
			failBefore := testutil.ToFloat64(globalManager.remotePushFailures.WithLabelValues("conflict"))
			fetchBefore := testutil.ToFloat64(globalManager.remoteFetchFailures)
			RecordRemotePush()
			RecordRemotePushFailure("conflict")
			RecordRemoteFetchFailure()

			Convey("Then each counter should move by one", func() {
				So(testutil.ToFloat64(globalManager.remotePushes), ShouldEqual, pushBefore+1)
				So(testutil.ToFloat64(globalManager.remotePushFailures.WithLabelValues("conflict")), ShouldEqual, failBefore+1)
				So(testutil.ToFloat64(globalManager.remoteFetchFailures), ShouldEqual, fetchBefore+1)
			})
		})

		Convey("When recording HTTP metrics", func() {
			So(func() {
				RecordHTTPRequest("/sessions", "POST", "201")
				RecordHTTPRequestDuration("/sessions", "POST", "201", 12.5)
				RecordErrorByEndpoint("/sessions", "POST", "400")
			}, ShouldNotPanic)
		})

		Convey("When recording process metrics", func() {
			UpdateSystemMemoryUsage(1 << 20)
			UpdateSystemGoroutineCount(12)
			RecordSystemGCPauseTime(0.2)

			So(testutil.ToFloat64(globalManager.memoryUsage), ShouldEqual, 1<<20)
			So(testutil.ToFloat64(globalManager.goroutineCount), ShouldEqual, 12)
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent writers", t, func() {
		before := testutil.ToFloat64(globalManager.remotePushes)
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					RecordRemotePush()
					RecordStoreLatency("upsert", 1)
				}
			}()
		}
		wg.Wait()

		Convey("Then no increment should be lost", func() {
			So(testutil.ToFloat64(globalManager.remotePushes), ShouldEqual, before+1000)
		})
	})
}
