// Package pipeline reads a newline-delimited JSON message stream and pushes
// its records to a destination, one record at a time in input order.
package pipeline

import (
	"bufio"
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/optisync/optiply-target/pkg/connector/core"
	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/models"
)

// maxLineSize bounds a single input line. Order records embed their line
// items as a JSON string, so lines can grow well past bufio's default.
const maxLineSize = 16 * 1024 * 1024

// Summary aggregates per-outcome counts for one run.
type Summary struct {
	Records  int64
	Written  int64
	Skipped  int64
	NotFound int64
	Failed   int64
	States   int64
}

// Pipeline pumps messages from an input stream into a destination. Records
// are processed to completion in order; STATE messages are echoed to the
// state writer only after every preceding record has been handled.
type Pipeline struct {
	dest   core.Destination
	state  io.Writer
	logger *zap.Logger
}

// New creates a pipeline writing durable state lines to stateWriter.
func New(dest core.Destination, stateWriter io.Writer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		dest:   dest,
		state:  stateWriter,
		logger: logger.With(zap.String("component", "pipeline")),
	}
}

// Run consumes input until EOF, context cancellation, or a fatal error.
// Per-record failures are counted and logged but do not stop the run.
func (p *Pipeline) Run(ctx context.Context, input io.Reader) (*Summary, error) {
	summary := &Summary{}
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		msg, err := DecodeMessage(scanner.Bytes())
		if err != nil {
			return summary, err
		}
		if msg == nil {
			continue
		}

		switch msg.Type {
		case MessageTypeRecord:
			summary.Records++
			if err := p.processRecord(ctx, msg, summary); err != nil {
				return summary, err
			}

		case MessageTypeState:
			summary.States++
			if err := p.emitState(msg); err != nil {
				return summary, err
			}

		case MessageTypeSchema:
			p.logger.Debug("schema received", zap.String("stream", msg.Stream))

		default:
			p.logger.Debug("ignoring message", zap.String("type", msg.Type))
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, errors.Wrap(err, errors.ErrorTypeData, "reading input failed")
	}

	p.logger.Info("input drained",
		zap.Int64("records", summary.Records),
		zap.Int64("written", summary.Written),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("failed", summary.Failed))
	return summary, nil
}

func (p *Pipeline) processRecord(ctx context.Context, msg *Message, summary *Summary) error {
	sink, err := p.dest.SinkFor(msg.Stream)
	if err != nil {
		return err
	}

	record := models.NewRecord(msg.Stream)
	record.Data = msg.Record
	defer record.Release()

	result := sink.Process(ctx, record, nil)
	switch result.Outcome {
	case core.OutcomeSuccess:
		summary.Written++
	case core.OutcomeSkipped:
		summary.Skipped++
	case core.OutcomeNotFound:
		summary.NotFound++
	case core.OutcomeFailed:
		summary.Failed++
		if result.Err != nil && errors.IsFatal(result.Err) {
			return result.Err
		}
	}
	return nil
}

// emitState echoes a STATE message once all records before it are handled,
// so a resuming upstream never replays acknowledged work.
func (p *Pipeline) emitState(msg *Message) error {
	if p.state == nil {
		return nil
	}
	line, err := msg.Encode()
	if err != nil {
		return err
	}
	if _, err := p.state.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "writing state failed")
	}
	return nil
}
