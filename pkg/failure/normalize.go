package failure

import (
	"context"
	"errors"
	"net"
	"net/http"
	"syscall"

	"github.com/go-playground/validator/v10"
)

// Normalize maps a raw error onto the closed failure taxonomy. The mapping
// is priority ordered and the first matching branch wins:
//
//  1. A typed failure with status 404 and a known resource id is rewritten
//     to a resource_not_found that names the kind and id.
//  2. Any other typed failure is returned unchanged (no double wrapping).
//  3. Cancellation reports as request_aborted (499). Cancellation is
//     checked before the timeout branch so that an abort racing a timeout
//     reports the client's intent, not a server-side timeout.
//  4. Connection-refused and host-not-found report as network_error (503).
//  5. Timeouts report as request_timeout (504).
//  6. Schema-validation errors report as validation_error (422) with the
//     structured issues attached.
//  7. Everything else reports as unexpected_error (500).
//
// kind names the resource kind for diagnostics; id may be empty when the
// request has no single-resource scope.
func Normalize(err error, kind, id string) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		if f.Status == http.StatusNotFound && id != "" {
			return &Failure{
				Status:  http.StatusNotFound,
				Code:    CodeNotFound,
				Message: kind + " '" + id + "' not found",
				Err:     f,
			}
		}
		return f
	}

	if errors.Is(err, context.Canceled) {
		return &Failure{
			Status:  StatusAborted,
			Code:    CodeAborted,
			Message: kind + " request aborted by client",
			Err:     err,
		}
	}

	if isConnectionError(err) {
		return &Failure{
			Status:  http.StatusServiceUnavailable,
			Code:    CodeNetwork,
			Message: "backend unreachable while fetching " + kind,
			Err:     err,
		}
	}

	if isTimeout(err) {
		return &Failure{
			Status:  http.StatusGatewayTimeout,
			Code:    CodeTimeout,
			Message: "backend timed out while fetching " + kind,
			Err:     err,
		}
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msg := kind + " payload failed validation"
		if id != "" {
			msg = kind + " '" + id + "' payload failed validation"
		}
		return &Failure{
			Status:  http.StatusUnprocessableEntity,
			Code:    CodeValidation,
			Message: msg,
			Issues:  IssuesFrom(verrs),
			Err:     err,
		}
	}

	return &Failure{
		Status:  http.StatusInternalServerError,
		Code:    CodeUnexpected,
		Message: "unexpected error while resolving " + kind,
		Err:     err,
	}
}

// IssuesFrom converts validator findings into structured issues.
func IssuesFrom(verrs validator.ValidationErrors) []Issue {
	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, Issue{
			Field:      fe.Field(),
			Constraint: fe.Tag(),
			Message:    fe.Error(),
		})
	}
	return issues
}

// isConnectionError reports whether err is a connection-refused or
// host-not-found class transport failure.
func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound || !dnsErr.IsTimeout
	}
	return false
}

// isTimeout reports whether err is a timeout-class failure. Context
// deadline expiry and net.Error timeouts both count.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
