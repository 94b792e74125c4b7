package optiply

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/optisync/optiply-target/pkg/auth"
	"github.com/optisync/optiply-target/pkg/clients"
	"github.com/optisync/optiply-target/pkg/connector/base"
	"github.com/optisync/optiply-target/pkg/connector/core"
	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/metrics"
	"github.com/optisync/optiply-target/pkg/models"
	"github.com/optisync/optiply-target/pkg/observability"
)

// maxResponseBody bounds how much of a response is read for error reporting.
const maxResponseBody = 64 * 1024

// Sink pushes records of one logical stream to its API endpoint. Records are
// processed one at a time; ordering within the stream is preserved.
type Sink struct {
	stream  string
	desc    *ResourceDescriptor
	cfg     *ConnectionConfig
	builder *PayloadBuilder
	http    *clients.HTTPClient
	tokens  *auth.TokenManager
	retry   *base.RetryPolicy
	tracer  *observability.SinkTracer
	logger  *zap.Logger
}

func newSink(stream string, desc *ResourceDescriptor, cfg *ConnectionConfig,
	httpClient *clients.HTTPClient, tokens *auth.TokenManager,
	retry *base.RetryPolicy, logger *zap.Logger) *Sink {
	if retry == nil {
		retry = base.DispatchRetryPolicy()
	}
	return &Sink{
		stream:  stream,
		desc:    desc,
		cfg:     cfg,
		builder: NewPayloadBuilder(cfg, logger),
		http:    httpClient,
		tokens:  tokens,
		retry:   retry,
		tracer:  observability.NewSinkTracer("optiply"),
		logger:  logger.With(zap.String("stream", stream)),
	}
}

// Stream returns the logical stream name this sink serves.
func (s *Sink) Stream() string {
	return s.stream
}

// Process handles one record to completion: build the payload, dispatch it
// with retries, classify the response. Validation failures skip the record
// without an HTTP call; a 404 is a no-op; only authentication and
// configuration errors propagate as fatal.
func (s *Sink) Process(ctx context.Context, record *models.Record, recordCtx *core.RecordContext) core.Result {
	ctx, span := s.tracer.StartSpan(ctx, "process_record")
	defer span.End()
	span.SetAttribute("stream", s.stream)

	method := s.resolveMethod(record, recordCtx)
	span.SetAttribute("http.method", method)

	payload, err := s.builder.Build(record, s.desc, method)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeValidation) {
			s.logger.Warn("skipping record",
				zap.String("reason", err.Error()))
			metrics.RecordsProcessed.WithLabelValues(s.stream, metrics.OutcomeSkipped).Inc()
			return core.Result{Outcome: core.OutcomeSkipped, Reason: err.Error()}
		}
		span.RecordError(err)
		metrics.RecordsProcessed.WithLabelValues(s.stream, metrics.OutcomeFailed).Inc()
		return core.Result{Outcome: core.OutcomeFailed, Reason: err.Error(), Err: err}
	}

	body, err := payload.Encode()
	if err != nil {
		err = errors.Wrap(err, errors.ErrorTypeData, "payload encoding failed")
		span.RecordError(err)
		metrics.RecordsProcessed.WithLabelValues(s.stream, metrics.OutcomeFailed).Inc()
		return core.Result{Outcome: core.OutcomeFailed, Reason: err.Error(), Err: err}
	}

	url := s.requestURL(method, record)
	if err := s.dispatch(ctx, method, url, body); err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			s.logger.Warn("resource not found, skipping",
				zap.String("url", url))
			metrics.RecordsProcessed.WithLabelValues(s.stream, metrics.OutcomeNotFound).Inc()
			return core.Result{Outcome: core.OutcomeNotFound, Reason: "resource not found"}
		}
		span.RecordError(err)
		s.logger.Error("record dispatch failed",
			zap.String("method", method),
			zap.Error(err))
		metrics.RecordsProcessed.WithLabelValues(s.stream, metrics.OutcomeFailed).Inc()
		return core.Result{Outcome: core.OutcomeFailed, Reason: err.Error(), Err: err}
	}

	s.logger.Debug("record written",
		zap.String("method", method))
	metrics.RecordsProcessed.WithLabelValues(s.stream, metrics.OutcomeSuccess).Inc()
	return core.Result{Outcome: core.OutcomeSuccess}
}

// resolveMethod picks PATCH when the pipeline pre-computed it or when the
// record carries its identifier and the resource supports partial updates.
func (s *Sink) resolveMethod(record *models.Record, recordCtx *core.RecordContext) string {
	if recordCtx != nil && recordCtx.HTTPMethod != "" {
		return recordCtx.HTTPMethod
	}
	if s.desc.SupportsPatch {
		if _, ok := identifierValue(record, s.desc); ok {
			return http.MethodPatch
		}
	}
	return http.MethodPost
}

// requestURL builds the endpoint URL. PATCH targets a single resource by id;
// every request carries the account and coupling scope.
func (s *Sink) requestURL(method string, record *models.Record) string {
	url := fmt.Sprintf("%s/%s", s.cfg.BaseURL, s.desc.EndpointPath)
	if method == http.MethodPatch {
		if id, ok := identifierValue(record, s.desc); ok {
			url = fmt.Sprintf("%s/%s", url, id)
		}
	}
	return fmt.Sprintf("%s?accountId=%d&couplingId=%d", url, s.cfg.AccountID, s.cfg.CouplingID)
}

// dispatch sends the request, retrying timeouts and 5xx responses with
// exponential backoff. 4xx responses are permanent and returned immediately.
func (s *Sink) dispatch(ctx context.Context, method, url string, body []byte) error {
	return s.tracer.TraceDispatch(ctx, s.stream, func(ctx context.Context) error {
		attempt := 0
		fn := func() error {
			if attempt > 0 {
				metrics.RequestRetries.WithLabelValues(s.desc.EndpointPath).Inc()
			}
			attempt++
			return s.send(ctx, method, url, body)
		}
		return s.retry.ExecuteWithCondition(ctx, fn, errors.IsRetryable)
	})
}

// send performs a single request attempt.
func (s *Sink) send(ctx context.Context, method, url string, body []byte) error {
	headers, err := s.tokens.AuthHeaders(ctx)
	if err != nil {
		return err
	}
	headers["Content-Type"] = "application/vnd.api+json"
	headers["Accept"] = "application/vnd.api+json"

	start := time.Now()
	resp, err := s.http.Request(ctx, method, url, bytes.NewReader(body), headers)
	metrics.RequestLatency.WithLabelValues(method, s.desc.EndpointPath).Observe(time.Since(start).Seconds())
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return errors.Wrap(readErr, errors.ErrorTypeConnection, "reading response failed")
	}

	return classifyStatus(resp.StatusCode, respBody)
}
