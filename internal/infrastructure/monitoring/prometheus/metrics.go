package prometheus

import (
	"strconv"
	"time"
)

// Bucket layouts shared by the application histograms.
var (
	DefaultHTTPDurationBuckets       = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultValidationDurationBuckets = []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, 1}
	DefaultDBDurationBuckets         = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}
	DefaultPayloadSizeBuckets        = []float64{1, 5, 10, 25, 50, 100, 250, 500}
)

// AppMetrics groups every metric the engine and its entrypoints publish.
type AppMetrics struct {
	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Validation
	ValidationsTotal        CounterVec
	ValidationDuration      HistogramVec
	ValidationEntries       HistogramVec
	ResolutionsTotal        CounterVec
	RejectionsTotal         CounterVec
	DuplicateConflictsTotal CounterVec

	// Classification
	CategoryLookupsTotal CounterVec
	CategoryCacheTotal   CounterVec
	CategoryCacheSize    GaugeVec
	OverrideErrorsTotal  CounterVec

	// Reference specification
	SpecReloadsTotal CounterVec
	SpecBiomarkers   GaugeVec
	SpecImportsTotal CounterVec
	DBQueryDuration  HistogramVec

	// Worker
	WorkerMessagesTotal   CounterVec
	WorkerProcessDuration HistogramVec

	// Health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// NewAppMetrics registers every application metric on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.ValidationsTotal = collector.RegisterCounter("validations_total", "Validated submissions", "outcome")
	m.ValidationDuration = collector.RegisterHistogram("validation_duration_seconds", "Submission validation duration", DefaultValidationDurationBuckets, "source")
	m.ValidationEntries = collector.RegisterHistogram("validation_entries", "Entries per submission", DefaultPayloadSizeBuckets, "source")
	m.ResolutionsTotal = collector.RegisterCounter("resolutions_total", "Resolved names by match type", "match_type")
	m.RejectionsTotal = collector.RegisterCounter("rejections_total", "Rejected names by reason class", "reason")
	m.DuplicateConflictsTotal = collector.RegisterCounter("duplicate_conflicts_total", "Duplicate conflicts detected")

	m.CategoryLookupsTotal = collector.RegisterCounter("category_lookups_total", "Category lookups by answering source", "source")
	m.CategoryCacheTotal = collector.RegisterCounter("category_cache_requests_total", "Classification cache requests", "result")
	m.CategoryCacheSize = collector.RegisterGauge("category_cache_entries", "Classification cache entries", "cache")
	m.OverrideErrorsTotal = collector.RegisterCounter("override_lookup_errors_total", "Failed override lookups", "store")

	m.SpecReloadsTotal = collector.RegisterCounter("spec_reloads_total", "Specification reloads", "status")
	m.SpecBiomarkers = collector.RegisterGauge("spec_biomarkers", "Biomarkers in the loaded specification", "version")
	m.SpecImportsTotal = collector.RegisterCounter("spec_imports_total", "Specification imports into the override store", "status")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation")

	m.WorkerMessagesTotal = collector.RegisterCounter("worker_messages_total", "Worker messages by outcome", "topic", "outcome")
	m.WorkerProcessDuration = collector.RegisterHistogram("worker_process_duration_seconds", "Worker message handling duration", DefaultHTTPDurationBuckets, "topic")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// NewNoopAppMetrics returns AppMetrics that discard every update.
func NewNoopAppMetrics() *AppMetrics {
	return NewAppMetrics(NewNoopCollector())
}

// Helpers

func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ValidationOutcome is the label set recorded for one validated submission.
type ValidationOutcome struct {
	Source     string
	Entries    int
	Success    bool
	MatchTypes map[string]int
	Reasons    map[string]int
	Duplicates int
	Duration   time.Duration
}

func RecordValidation(m *AppMetrics, o ValidationOutcome) {
	outcome := "success"
	if !o.Success {
		outcome = "review"
	}
	m.ValidationsTotal.WithLabelValues(outcome).Inc()
	m.ValidationDuration.WithLabelValues(o.Source).Observe(o.Duration.Seconds())
	m.ValidationEntries.WithLabelValues(o.Source).Observe(float64(o.Entries))
	for mt, n := range o.MatchTypes {
		if n > 0 {
			m.ResolutionsTotal.WithLabelValues(mt).Add(float64(n))
		}
	}
	for reason, n := range o.Reasons {
		if n > 0 {
			m.RejectionsTotal.WithLabelValues(reason).Add(float64(n))
		}
	}
	if o.Duplicates > 0 {
		m.DuplicateConflictsTotal.WithLabelValues().Add(float64(o.Duplicates))
	}
}

func RecordResolution(m *AppMetrics, matchType, reasonClass string) {
	if matchType != "" {
		m.ResolutionsTotal.WithLabelValues(matchType).Inc()
		return
	}
	m.RejectionsTotal.WithLabelValues(reasonClass).Inc()
}

func RecordCacheAccess(m *AppMetrics, hit bool) {
	if hit {
		m.CategoryCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	m.CategoryCacheTotal.WithLabelValues("miss").Inc()
}

func RecordCategoryLookup(m *AppMetrics, source string) {
	m.CategoryLookupsTotal.WithLabelValues(source).Inc()
}

func RecordSpecReload(m *AppMetrics, version string, biomarkers int, err error) {
	if err != nil {
		m.SpecReloadsTotal.WithLabelValues("failure").Inc()
		m.ErrorsTotal.WithLabelValues("reference", "reload").Inc()
		return
	}
	m.SpecReloadsTotal.WithLabelValues("success").Inc()
	m.SpecBiomarkers.WithLabelValues(version).Set(float64(biomarkers))
}

func RecordDBQuery(m *AppMetrics, operation string, duration time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues("postgres", "query_error").Inc()
	}
}

func RecordWorkerMessage(m *AppMetrics, topic, outcome string, duration time.Duration) {
	m.WorkerMessagesTotal.WithLabelValues(topic, outcome).Inc()
	m.WorkerProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

func RecordError(m *AppMetrics, component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
