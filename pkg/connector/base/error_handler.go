// Package base provides shared building blocks for connectors: retry
// policies and the per-record error handler.
package base

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/models"
)

// ErrorHandler categorizes per-record errors, keeps counters, and decides
// whether processing may continue with the next record.
type ErrorHandler struct {
	logger      *zap.Logger
	failFast    bool
	errorCounts map[errors.ErrorType]int64
	errorMutex  sync.RWMutex
	totalErrors int64
	fatalErrors int64
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, failFast bool) *ErrorHandler {
	return &ErrorHandler{
		logger:      logger,
		failFast:    failFast,
		errorCounts: make(map[errors.ErrorType]int64),
	}
}

// Handle logs a per-record error with diagnostic context and reports whether
// the run must abort. Record data is logged field-names-only so credentials
// embedded in values never reach the log.
func (eh *ErrorHandler) Handle(err error, record *models.Record) (abort bool) {
	if err == nil {
		return false
	}

	atomic.AddInt64(&eh.totalErrors, 1)
	eh.incrementErrorCount(categorize(err))

	fields := []zap.Field{
		zap.Error(err),
		zap.String("error_type", string(categorize(err))),
	}
	if record != nil {
		fields = append(fields,
			zap.String("stream", record.Metadata.Stream),
			zap.Strings("record_fields", fieldNames(record)),
		)
	}

	if errors.IsFatal(err) {
		atomic.AddInt64(&eh.fatalErrors, 1)
		eh.logger.Error("fatal error, aborting run", fields...)
		return true
	}

	eh.logger.Error("record failed, continuing with next record", fields...)
	return eh.failFast
}

// Counts returns a snapshot of per-type error counts.
func (eh *ErrorHandler) Counts() map[errors.ErrorType]int64 {
	eh.errorMutex.RLock()
	defer eh.errorMutex.RUnlock()

	counts := make(map[errors.ErrorType]int64, len(eh.errorCounts))
	for k, v := range eh.errorCounts {
		counts[k] = v
	}
	return counts
}

// TotalErrors returns the total number of errors handled.
func (eh *ErrorHandler) TotalErrors() int64 {
	return atomic.LoadInt64(&eh.totalErrors)
}

func (eh *ErrorHandler) incrementErrorCount(errType errors.ErrorType) {
	eh.errorMutex.Lock()
	defer eh.errorMutex.Unlock()
	eh.errorCounts[errType]++
}

func categorize(err error) errors.ErrorType {
	for _, t := range []errors.ErrorType{
		errors.ErrorTypeAuthentication,
		errors.ErrorTypeConfig,
		errors.ErrorTypeValidation,
		errors.ErrorTypeRejected,
		errors.ErrorTypeNotFound,
		errors.ErrorTypeTimeout,
		errors.ErrorTypeConnection,
		errors.ErrorTypeData,
	} {
		if errors.IsType(err, t) {
			return t
		}
	}
	return errors.ErrorTypeInternal
}

func fieldNames(record *models.Record) []string {
	names := make([]string, 0, len(record.Data))
	for k := range record.Data {
		names = append(names, k)
	}
	return names
}
