package optiply

import (
	"fmt"
	"net"
	"net/http"

	"github.com/optisync/optiply-target/pkg/errors"
)

// maxErrorBodyLen caps how much of an error response body makes it into
// logs and error messages.
const maxErrorBodyLen = 512

// classifyStatus turns an HTTP response into an error category.
//
//	2xx          -> nil, the record succeeded
//	404          -> not found, logged and skipped without failing the record
//	other 4xx    -> rejected, permanent for this record, never retried
//	5xx          -> connection error, retriable
func classifyStatus(statusCode int, body []byte) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusNotFound:
		return errors.New(errors.ErrorTypeNotFound, "resource not found")
	case statusCode >= 500:
		return errors.New(errors.ErrorTypeConnection,
			fmt.Sprintf("server error %d: %s", statusCode, truncateBody(body)))
	default:
		return errors.New(errors.ErrorTypeRejected,
			fmt.Sprintf("request rejected with %d: %s", statusCode, truncateBody(body)))
	}
}

// classifyTransportError maps request transport failures. Timeouts are
// retriable alongside 5xx responses; everything else is a connection error,
// also retriable.
func classifyTransportError(err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "request timed out")
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyLen {
		return string(body[:maxErrorBodyLen]) + "..."
	}
	return string(body)
}
