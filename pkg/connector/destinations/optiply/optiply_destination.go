// Package optiply implements the Optiply destination: it pushes typed
// business records (products, suppliers, orders and their lines) to the
// Optiply JSON:API REST service, one request per record.
package optiply

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/optisync/optiply-target/pkg/auth"
	"github.com/optisync/optiply-target/pkg/clients"
	"github.com/optisync/optiply-target/pkg/config"
	"github.com/optisync/optiply-target/pkg/connector/base"
	"github.com/optisync/optiply-target/pkg/connector/core"
	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/logger"
	"github.com/optisync/optiply-target/pkg/models"
)

// Destination pushes records to the Optiply API. Records are dispatched
// serially in arrival order; per-record failures are counted and logged but
// never abort the run, only authentication and configuration errors do.
type Destination struct {
	config  *config.BaseConfig
	conn    *ConnectionConfig
	http    *clients.HTTPClient
	tokens  *auth.TokenManager
	handler *base.ErrorHandler
	sinks   map[string]*Sink
	logger  *zap.Logger

	written int64
	skipped int64
	failed  int64
}

// NewDestination creates an uninitialized Optiply destination.
func NewDestination() *Destination {
	return &Destination{
		logger: logger.Get().With(zap.String("destination", "optiply")),
	}
}

// Initialize validates credentials, builds the HTTP client and token
// manager, and constructs one sink per supported stream.
func (d *Destination) Initialize(ctx context.Context, cfg *config.BaseConfig) error {
	conn, err := ParseConnectionConfig(cfg)
	if err != nil {
		return err
	}

	httpConfig := clients.DefaultHTTPConfig()
	if cfg.Timeouts.Request > 0 {
		httpConfig.RequestTimeout = cfg.Timeouts.Request
	}
	if cfg.Timeouts.Connection > 0 {
		httpConfig.DialTimeout = cfg.Timeouts.Connection
	}
	if cfg.Timeouts.Idle > 0 {
		httpConfig.IdleConnTimeout = cfg.Timeouts.Idle
	}
	if cfg.Timeouts.KeepAlive > 0 {
		httpConfig.KeepAlive = cfg.Timeouts.KeepAlive
	}
	if cfg.Security.TLSSkipVerify {
		httpConfig.InsecureSkipVerify = true
	}
	httpClient := clients.NewHTTPClient(httpConfig, d.logger)

	tokens := auth.NewTokenManager(&auth.Config{
		AuthURL:      conn.AuthURL,
		ClientID:     conn.ClientID,
		ClientSecret: conn.ClientSecret,
		Username:     conn.Username,
		Password:     conn.Password,
		ExpiryBuffer: auth.DefaultExpiryBuffer,
	}, httpClient, d.logger)

	d.config = cfg
	d.conn = conn
	d.http = httpClient
	d.tokens = tokens
	d.handler = base.NewErrorHandler(d.logger, cfg.Reliability.FailFast)

	retry := base.DispatchRetryPolicy()
	if cfg.Reliability.RetryAttempts > 0 {
		retry = retry.WithMaxAttempts(cfg.Reliability.RetryAttempts)
	}
	if cfg.Reliability.RetryDelay > 0 && cfg.Reliability.MaxRetryDelay > 0 {
		retry = retry.WithDelay(cfg.Reliability.RetryDelay, cfg.Reliability.MaxRetryDelay)
	}
	if cfg.Reliability.RetryMultiplier >= 1 {
		retry = retry.WithMultiplier(cfg.Reliability.RetryMultiplier)
	}

	d.sinks = make(map[string]*Sink, len(descriptors))
	for name, desc := range descriptors {
		d.sinks[name] = newSink(name, desc, conn, httpClient, tokens, retry, d.logger)
	}

	d.logger.Info("destination initialized",
		zap.String("base_url", conn.BaseURL),
		zap.Int("account_id", conn.AccountID),
		zap.Int("streams", len(d.sinks)))
	return nil
}

// SinkFor resolves the record sink for a logical stream name.
func (d *Destination) SinkFor(streamName string) (core.RecordSink, error) {
	sink, ok := d.sinks[streamName]
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("unsupported stream: %s", streamName))
	}
	return sink, nil
}

// Write consumes the record stream serially until it is drained, the context
// is cancelled, or a fatal error occurs.
func (d *Destination) Write(ctx context.Context, stream *core.RecordStream) error {
	if d.sinks == nil {
		return errors.New(errors.ErrorTypeConfig, "destination not initialized")
	}

	errCh := stream.Errors
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errCh:
			if !ok {
				// Stop selecting on the closed channel
				errCh = nil
				continue
			}
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "record stream failed")
			}

		case record, ok := <-stream.Records:
			if !ok {
				d.logger.Info("record stream drained",
					zap.Int64("written", atomic.LoadInt64(&d.written)),
					zap.Int64("skipped", atomic.LoadInt64(&d.skipped)),
					zap.Int64("failed", atomic.LoadInt64(&d.failed)))
				return nil
			}
			if err := d.writeRecord(ctx, record); err != nil {
				return err
			}
		}
	}
}

func (d *Destination) writeRecord(ctx context.Context, record *models.Record) error {
	defer record.Release()

	sink, err := d.SinkFor(record.Metadata.Stream)
	if err != nil {
		// Unknown stream is a config error: abort rather than drop silently
		return err
	}

	result := sink.Process(ctx, record, nil)
	switch result.Outcome {
	case core.OutcomeSuccess, core.OutcomeNotFound:
		atomic.AddInt64(&d.written, 1)
	case core.OutcomeSkipped:
		atomic.AddInt64(&d.skipped, 1)
	case core.OutcomeFailed:
		atomic.AddInt64(&d.failed, 1)
		if abort := d.handler.Handle(result.Err, record); abort {
			return result.Err
		}
	}
	return nil
}

// Health verifies credentials by forcing a token check.
func (d *Destination) Health(ctx context.Context) error {
	if d.tokens == nil {
		return errors.New(errors.ErrorTypeConfig, "destination not initialized")
	}
	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := d.tokens.AuthHeaders(healthCtx); err != nil {
		return err
	}
	return nil
}

// Metrics reports destination counters.
func (d *Destination) Metrics() map[string]interface{} {
	m := map[string]interface{}{
		"records_written": atomic.LoadInt64(&d.written),
		"records_skipped": atomic.LoadInt64(&d.skipped),
		"records_failed":  atomic.LoadInt64(&d.failed),
	}
	if d.http != nil {
		total, failed := d.http.Stats()
		m["http_requests_total"] = total
		m["http_requests_failed"] = failed
	}
	if d.tokens != nil {
		refreshes, fullAuths := d.tokens.Stats()
		m["token_refreshes"] = refreshes
		m["token_full_auths"] = fullAuths
	}
	if d.handler != nil {
		m["errors_total"] = d.handler.TotalErrors()
	}
	return m
}

// Close drains idle connections. Records already dispatched are durable on
// the remote side; there is no local buffer to flush.
func (d *Destination) Close(ctx context.Context) error {
	if d.http != nil {
		d.http.CloseIdleConnections()
	}
	d.logger.Info("destination closed")
	return nil
}
