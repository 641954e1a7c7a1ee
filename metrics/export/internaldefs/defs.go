package internaldefs

import (
	"github.com/MrEthical07/sessiongate"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   sessiongate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   sessiongate.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "sessiongate_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: sessiongate.MetricLoginSuccess, Name: "sessiongate_login_success_total", Help: "Logins that issued a session."},
	{ID: sessiongate.MetricLoginFailure, Name: "sessiongate_login_failure_total", Help: "Logins rejected for bad credentials or a disabled account."},
	{ID: sessiongate.MetricLoginResetRequired, Name: "sessiongate_login_reset_required_total", Help: "Logins deferred by a forced password reset."},
	{ID: sessiongate.MetricRegisterSuccess, Name: "sessiongate_register_success_total", Help: "Completed registrations."},
	{ID: sessiongate.MetricRegisterDuplicate, Name: "sessiongate_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: sessiongate.MetricRefreshSuccess, Name: "sessiongate_refresh_success_total", Help: "Access tokens reissued from a session cookie."},
	{ID: sessiongate.MetricRefreshFailure, Name: "sessiongate_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: sessiongate.MetricValidateFailure, Name: "sessiongate_validate_failure_total", Help: "Requests rejected by the authentication gate."},
	{ID: sessiongate.MetricAccountDisabled, Name: "sessiongate_account_disabled_total", Help: "Requests and logins rejected for a disabled account."},
	{ID: sessiongate.MetricPermissionDenied, Name: "sessiongate_permission_denied_total", Help: "RBAC denials."},
	{ID: sessiongate.MetricRateLimitHit, Name: "sessiongate_rate_limit_hit_total", Help: "Requests answered 429 by the failure limiter."},
	{ID: sessiongate.MetricRateLimitBlock, Name: "sessiongate_rate_limit_block_total", Help: "Block flags set by the failure limiter."},
	{ID: sessiongate.MetricSessionCreated, Name: "sessiongate_session_created_total", Help: "Sessions written to both stores."},
	{ID: sessiongate.MetricSessionInvalidated, Name: "sessiongate_session_invalidated_total", Help: "Session revocations."},
	{ID: sessiongate.MetricLogout, Name: "sessiongate_logout_total", Help: "Single-session logouts."},
	{ID: sessiongate.MetricLogoutAll, Name: "sessiongate_logout_all_total", Help: "Logout-all operations."},
	{ID: sessiongate.MetricPasswordChangeSuccess, Name: "sessiongate_password_change_success_total", Help: "Password changes by an authenticated user."},
	{ID: sessiongate.MetricPasswordChangeInvalidOld, Name: "sessiongate_password_change_invalid_old_total", Help: "Password changes rejected for a wrong current password."},
	{ID: sessiongate.MetricPasswordResetIssued, Name: "sessiongate_password_reset_issued_total", Help: "Reset tokens issued at login."},
	{ID: sessiongate.MetricPasswordResetSuccess, Name: "sessiongate_password_reset_success_total", Help: "Consumed reset tokens."},
	{ID: sessiongate.MetricPasswordResetFailure, Name: "sessiongate_password_reset_failure_total", Help: "Rejected reset attempts."},
	{ID: sessiongate.MetricSessionsSwept, Name: "sessiongate_sessions_swept_total", Help: "Ledger rows removed by the session sweep."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessiongate.MetricValidateLatency, Name: "sessiongate_validate_latency_seconds", Help: "Authentication gate latency."},
}

// BucketCount is the number of latency buckets, +Inf included.
const BucketCount = 8

// HistogramBounds are the Prometheus le labels of the latency buckets.
var HistogramBounds = [BucketCount]string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}

// HistogramBoundSuffix are the instrument name suffixes used where labels
// are not available.
var HistogramBoundSuffix = [BucketCount]string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// Cumulative converts raw per-bucket counts into cumulative counts. Missing
// trailing buckets count as zero.
func Cumulative(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < BucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
