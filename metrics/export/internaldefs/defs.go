package internaldefs

import (
	"github.com/halcyonlabs/stepauth"
)

// CounterDef binds one engine counter to its exported name.
type CounterDef struct {
	ID   stepauth.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine latency histogram to its exported name.
type HistogramDef struct {
	ID   stepauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter the exporters publish, in a stable
// order.
var CounterDefs = []CounterDef{
	{ID: stepauth.MetricLoginSuccess, Name: "stepauth_login_success_total", Help: "Completed login attempts."},
	{ID: stepauth.MetricLoginFailure, Name: "stepauth_login_failure_total", Help: "Rejected login attempts."},
	{ID: stepauth.MetricLoginIntermediary, Name: "stepauth_login_intermediary_total", Help: "Login hops that returned an intermediary result."},
	{ID: stepauth.MetricRegisterSuccess, Name: "stepauth_register_success_total", Help: "Successful registrations."},
	{ID: stepauth.MetricRegisterFailure, Name: "stepauth_register_failure_total", Help: "Rejected registrations."},
	{ID: stepauth.MetricRefreshSuccess, Name: "stepauth_refresh_success_total", Help: "Access tokens minted from refresh tokens."},
	{ID: stepauth.MetricRefreshFailure, Name: "stepauth_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: stepauth.MetricValidateSuccess, Name: "stepauth_validate_success_total", Help: "Access tokens validated."},
	{ID: stepauth.MetricValidateFailure, Name: "stepauth_validate_failure_total", Help: "Access tokens rejected."},
	{ID: stepauth.MetricLogout, Name: "stepauth_logout_total", Help: "Session logouts."},
	{ID: stepauth.MetricPasswordChangeSuccess, Name: "stepauth_password_change_success_total", Help: "Successful password changes."},
	{ID: stepauth.MetricPasswordChangeFailure, Name: "stepauth_password_change_failure_total", Help: "Rejected password changes."},
	{ID: stepauth.MetricTOTPEnrollStarted, Name: "stepauth_totp_enroll_started_total", Help: "TOTP enrollments begun."},
	{ID: stepauth.MetricTOTPEnrollConfirmed, Name: "stepauth_totp_enroll_confirmed_total", Help: "TOTP enrollments confirmed."},
	{ID: stepauth.MetricTOTPEnrollCancelled, Name: "stepauth_totp_enroll_cancelled_total", Help: "TOTP enrollments cancelled."},
	{ID: stepauth.MetricTOTPDisabled, Name: "stepauth_totp_disabled_total", Help: "TOTP disable operations."},
	{ID: stepauth.MetricBackupCodeUsed, Name: "stepauth_backup_code_used_total", Help: "Recovery codes consumed."},
	{ID: stepauth.MetricBackupCodeRegenerated, Name: "stepauth_backup_code_regenerated_total", Help: "Recovery-code batch regenerations."},
	{ID: stepauth.MetricProofOfWorkAccepted, Name: "stepauth_proof_of_work_accepted_total", Help: "Accepted proof-of-work submissions."},
	{ID: stepauth.MetricProofOfWorkRejected, Name: "stepauth_proof_of_work_rejected_total", Help: "Proof-of-work submissions below the stored difficulty."},
	{ID: stepauth.MetricSessionsSwept, Name: "stepauth_sessions_swept_total", Help: "Expired sessions removed by sweeps."},
	{ID: stepauth.MetricSessionsRevoked, Name: "stepauth_sessions_revoked_total", Help: "Sessions removed by revocation."},
}

// HistogramDefs lists the latency histograms.
var HistogramDefs = []HistogramDef{
	{ID: stepauth.MetricLoginLatency, Name: "stepauth_login_latency_seconds", Help: "Login latency histogram."},
	{ID: stepauth.MetricValidateLatency, Name: "stepauth_validate_latency_seconds", Help: "Validate latency histogram."},
	{ID: stepauth.MetricRefreshLatency, Name: "stepauth_refresh_latency_seconds", Help: "Refresh latency histogram."},
}

// HistogramBounds are the upper bounds of the engine's eight latency
// buckets, as Prometheus le label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with characters legal in
// OTel instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// eight-bucket shape.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms use.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
