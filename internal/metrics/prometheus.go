package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kartikbazzad/queryterm/internal/errors"
	"github.com/kartikbazzad/queryterm/internal/types"
)

// PrometheusExporter provides Prometheus/OpenMetrics format metrics for the
// query-ingestion node: envelope/parse throughput, error rates by kind, the
// outstanding-query watermark, and term-arena memory pressure.
type PrometheusExporter struct {
	mu sync.RWMutex

	// Query counters, keyed by QueryType and outcome status.
	queriesTotal map[string]map[string]uint64

	// Parse durations in seconds, per query type.
	parseDurations map[string][]float64

	// Error counters by classifier category and by errors.Kind.
	errorsByCategory map[errors.ErrorCategory]uint64
	errorsByKind     map[errors.Kind]uint64

	// noreply_wait metrics: how often a wait blocked and how long.
	noreplyWaitsTotal   uint64
	noreplyWaitDuration []float64
}

func NewPrometheusExporter() *PrometheusExporter {
	return &PrometheusExporter{
		queriesTotal:     make(map[string]map[string]uint64),
		parseDurations:   make(map[string][]float64),
		errorsByCategory: make(map[errors.ErrorCategory]uint64),
		errorsByKind:     make(map[errors.Kind]uint64),
	}
}

// RecordQuery records one processed query envelope.
func (pe *PrometheusExporter) RecordQuery(queryType types.QueryType, status types.Status, duration time.Duration) {
	pe.mu.Lock()
	defer pe.mu.Unlock()

	qt := queryType.String()
	if pe.queriesTotal[qt] == nil {
		pe.queriesTotal[qt] = make(map[string]uint64)
	}
	pe.queriesTotal[qt][statusString(status)]++

	if pe.parseDurations[qt] == nil {
		pe.parseDurations[qt] = make([]float64, 0, 100)
	}
	pe.parseDurations[qt] = append(pe.parseDurations[qt], duration.Seconds())
	if len(pe.parseDurations[qt]) > 1000 {
		pe.parseDurations[qt] = pe.parseDurations[qt][len(pe.parseDurations[qt])-1000:]
	}
}

// RecordError records an error occurrence by both its retry category and
// its protocol kind.
func (pe *PrometheusExporter) RecordError(category errors.ErrorCategory, kind errors.Kind) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.errorsByCategory[category]++
	pe.errorsByKind[kind]++
}

// RecordNoreplyWait records one noreply_wait call and how long it blocked
// before the outstanding-query watermark satisfied it.
func (pe *PrometheusExporter) RecordNoreplyWait(duration time.Duration) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.noreplyWaitsTotal++
	pe.noreplyWaitDuration = append(pe.noreplyWaitDuration, duration.Seconds())
	if len(pe.noreplyWaitDuration) > 1000 {
		pe.noreplyWaitDuration = pe.noreplyWaitDuration[len(pe.noreplyWaitDuration)-1000:]
	}
}

// Export returns metrics in Prometheus/OpenMetrics format, plus a
// human-readable comment block reporting arena memory pressure the way an
// operator reading the scrape output by hand would want it phrased.
func (pe *PrometheusExporter) Export(stats *types.Stats) string {
	pe.mu.RLock()
	defer pe.mu.RUnlock()

	var output string

	output += "# HELP queryterm_queries_total Total queries processed by type and status\n"
	output += "# TYPE queryterm_queries_total counter\n"
	for qt, statuses := range pe.queriesTotal {
		for status, count := range statuses {
			output += fmt.Sprintf("queryterm_queries_total{type=\"%s\",status=\"%s\"} %d\n", qt, status, count)
		}
	}

	output += "# HELP queryterm_parse_duration_seconds Query parse duration in seconds\n"
	output += "# TYPE queryterm_parse_duration_seconds summary\n"
	for qt, durations := range pe.parseDurations {
		if len(durations) == 0 {
			continue
		}
		var sum float64
		min, max := durations[0], durations[0]
		for _, d := range durations {
			sum += d
			if d < min {
				min = d
			}
			if d > max {
				max = d
			}
		}
		sorted := append([]float64(nil), durations...)
		sort.Float64s(sorted)
		median := sorted[len(sorted)/2]
		output += fmt.Sprintf("queryterm_parse_duration_seconds{type=\"%s\",quantile=\"0\"} %f\n", qt, min)
		output += fmt.Sprintf("queryterm_parse_duration_seconds{type=\"%s\",quantile=\"0.5\"} %f\n", qt, median)
		output += fmt.Sprintf("queryterm_parse_duration_seconds{type=\"%s\",quantile=\"1\"} %f\n", qt, max)
		output += fmt.Sprintf("queryterm_parse_duration_seconds_sum{type=\"%s\"} %f\n", qt, sum)
		output += fmt.Sprintf("queryterm_parse_duration_seconds_count{type=\"%s\"} %d\n", qt, len(durations))
	}

	output += "# HELP queryterm_sessions_active Currently open client sessions\n"
	output += "# TYPE queryterm_sessions_active gauge\n"
	output += fmt.Sprintf("queryterm_sessions_active %d\n", stats.ActiveSessions)

	output += "# HELP queryterm_outstanding_queries Queries acquired but not yet released by their session's allocator\n"
	output += "# TYPE queryterm_outstanding_queries gauge\n"
	output += fmt.Sprintf("queryterm_outstanding_queries %d\n", stats.OutstandingQueries)

	// term_arena_bytes is also written as a human-readable comment line so an
	// operator reading the scrape output doesn't have to do the division.
	output += fmt.Sprintf("# arena usage: %s / %s\n",
		humanize.Bytes(stats.TermArenaBytes), humanize.Bytes(stats.TermArenaCapacity))
	output += "# HELP queryterm_term_arena_bytes Term-arena bytes currently charged against the global cap\n"
	output += "# TYPE queryterm_term_arena_bytes gauge\n"
	output += fmt.Sprintf("queryterm_term_arena_bytes %d\n", stats.TermArenaBytes)

	output += "# HELP queryterm_term_arena_capacity_bytes Global term-arena byte cap\n"
	output += "# TYPE queryterm_term_arena_capacity_bytes gauge\n"
	output += fmt.Sprintf("queryterm_term_arena_capacity_bytes %d\n", stats.TermArenaCapacity)

	output += "# HELP queryterm_errors_total Total errors by retry category\n"
	output += "# TYPE queryterm_errors_total counter\n"
	for category, count := range pe.errorsByCategory {
		output += fmt.Sprintf("queryterm_errors_total{category=\"%s\"} %d\n", categoryString(category), count)
	}

	output += "# HELP queryterm_errors_by_kind_total Total errors by protocol kind\n"
	output += "# TYPE queryterm_errors_by_kind_total counter\n"
	for kind, count := range pe.errorsByKind {
		output += fmt.Sprintf("queryterm_errors_by_kind_total{kind=\"%s\"} %d\n", kind.String(), count)
	}

	output += "# HELP queryterm_noreply_waits_total Total noreply_wait calls\n"
	output += "# TYPE queryterm_noreply_waits_total counter\n"
	output += fmt.Sprintf("queryterm_noreply_waits_total %d\n", pe.noreplyWaitsTotal)

	return output
}

func statusString(status types.Status) string {
	switch status {
	case types.StatusOK:
		return "ok"
	case types.StatusClientError:
		return "client_error"
	case types.StatusGeneric:
		return "generic_error"
	case types.StatusArchiveError:
		return "archive_error"
	case types.StatusPoolStopped:
		return "pool_stopped"
	default:
		return "unknown"
	}
}

func categoryString(category errors.ErrorCategory) string {
	switch category {
	case errors.ErrorTransient:
		return "transient"
	case errors.ErrorPermanent:
		return "permanent"
	case errors.ErrorCritical:
		return "critical"
	case errors.ErrorValidation:
		return "validation"
	case errors.ErrorNetwork:
		return "network"
	default:
		return "unknown"
	}
}
