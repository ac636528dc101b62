package internaldefs

import (
	"github.com/MrEthical07/authclient"
)

// CounterDef names one counter.
type CounterDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// HistogramDef names one histogram.
type HistogramDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// BucketCount is the number of histogram buckets, +Inf included.
const BucketCount = 8

var CounterDefs = []CounterDef{
	{ID: authclient.MetricLoginSuccess, Name: "authclient_login_success_total", Help: "Successful logins."},
	{ID: authclient.MetricLoginFailure, Name: "authclient_login_failure_total", Help: "Failed logins."},
	{ID: authclient.MetricLogout, Name: "authclient_logout_total", Help: "Logouts that cleared a session."},
	{ID: authclient.MetricRefreshStarted, Name: "authclient_refresh_started_total", Help: "Refresh network calls issued."},
	{ID: authclient.MetricRefreshSuccess, Name: "authclient_refresh_success_total", Help: "Successful session renewals."},
	{ID: authclient.MetricRefreshFailure, Name: "authclient_refresh_failure_total", Help: "Failed session renewals."},
	{ID: authclient.MetricRefreshCoalesced, Name: "authclient_refresh_coalesced_total", Help: "Callers that joined an in-flight renewal."},
	{ID: authclient.MetricRequestAuthorized, Name: "authclient_request_authorized_total", Help: "Calls dispatched with a bearer token."},
	{ID: authclient.MetricRequestExempt, Name: "authclient_request_exempt_total", Help: "Calls to exempt auth endpoints."},
	{ID: authclient.MetricRequestUnauthenticated, Name: "authclient_request_unauthenticated_total", Help: "Calls rejected for lack of a session."},
	{ID: authclient.MetricRequestRejected, Name: "authclient_request_rejected_total", Help: "Calls rejected after a failed renewal."},
	{ID: authclient.MetricRouteAllowed, Name: "authclient_route_allowed_total", Help: "Route decisions that allowed navigation."},
	{ID: authclient.MetricRouteRedirected, Name: "authclient_route_redirected_total", Help: "Route decisions that redirected."},
	{ID: authclient.MetricMalformedToken, Name: "authclient_malformed_token_total", Help: "Stored access tokens that failed to decode."},
}

var HistogramDefs = []HistogramDef{
	{ID: authclient.MetricRefreshLatency, Name: "authclient_refresh_latency_seconds", Help: "Refresh round-trip latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds; the last bucket is +Inf.
var HistogramUpperBounds = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that flatten
// buckets into separate instruments.
var HistogramBoundSuffix = []string{
	"0_01",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"5",
	"inf",
}

// DroppedName is the counter of notifications discarded by a full async queue.
const (
	DroppedName = "authclient_notifications_dropped_total"
	DroppedHelp = "Notifications dropped due to dispatcher backpressure."
)

func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
