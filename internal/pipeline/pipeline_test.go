package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/optisync/optiply-target/pkg/config"
	"github.com/optisync/optiply-target/pkg/connector/core"
	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/models"
)

// fakeSink records everything it processes and replays scripted results.
type fakeSink struct {
	stream  string
	seen    []map[string]interface{}
	results []core.Result
}

func (s *fakeSink) Stream() string { return s.stream }

func (s *fakeSink) Process(_ context.Context, record *models.Record, _ *core.RecordContext) core.Result {
	data := make(map[string]interface{}, len(record.Data))
	for k, v := range record.Data {
		data[k] = v
	}
	s.seen = append(s.seen, data)
	if len(s.results) > 0 {
		result := s.results[0]
		s.results = s.results[1:]
		return result
	}
	return core.Result{Outcome: core.OutcomeSuccess}
}

// fakeDestination routes streams to fake sinks.
type fakeDestination struct {
	sinks map[string]*fakeSink
}

func (d *fakeDestination) Initialize(context.Context, *config.BaseConfig) error { return nil }
func (d *fakeDestination) Write(context.Context, *core.RecordStream) error      { return nil }
func (d *fakeDestination) Close(context.Context) error                          { return nil }
func (d *fakeDestination) Health(context.Context) error                         { return nil }
func (d *fakeDestination) Metrics() map[string]interface{}                      { return nil }

func (d *fakeDestination) SinkFor(streamName string) (core.RecordSink, error) {
	sink, ok := d.sinks[streamName]
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig, "unsupported stream: "+streamName)
	}
	return sink, nil
}

func TestRunRoutesRecordsAndEchoesState(t *testing.T) {
	sink := &fakeSink{stream: "Products"}
	dest := &fakeDestination{sinks: map[string]*fakeSink{"Products": sink}}

	input := strings.Join([]string{
		`{"type":"SCHEMA","stream":"Products","schema":{}}`,
		`{"type":"RECORD","stream":"Products","record":{"name":"Widget","stockLevel":3}}`,
		``,
		`{"type":"RECORD","stream":"Products","record":{"name":"Gadget","stockLevel":7}}`,
		`{"type":"STATE","value":{"bookmark":"2024-03-01"}}`,
	}, "\n")

	var state bytes.Buffer
	summary, err := New(dest, &state, zap.NewNop()).Run(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, int64(2), summary.Records)
	assert.Equal(t, int64(2), summary.Written)
	assert.Equal(t, int64(1), summary.States)

	require.Len(t, sink.seen, 2)
	assert.Equal(t, "Widget", sink.seen[0]["name"])
	assert.Equal(t, "Gadget", sink.seen[1]["name"])

	assert.Contains(t, state.String(), `"bookmark":"2024-03-01"`)
	assert.True(t, strings.HasSuffix(state.String(), "\n"))
}

func TestRunCountsOutcomes(t *testing.T) {
	sink := &fakeSink{
		stream: "Products",
		results: []core.Result{
			{Outcome: core.OutcomeSuccess},
			{Outcome: core.OutcomeSkipped, Reason: "missing mandatory fields: name"},
			{Outcome: core.OutcomeNotFound},
			{Outcome: core.OutcomeFailed, Err: errors.New(errors.ErrorTypeRejected, "rejected")},
		},
	}
	dest := &fakeDestination{sinks: map[string]*fakeSink{"Products": sink}}

	var lines []string
	for i := 0; i < 4; i++ {
		lines = append(lines, `{"type":"RECORD","stream":"Products","record":{"name":"x"}}`)
	}

	summary, err := New(dest, nil, zap.NewNop()).Run(context.Background(), strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.Records)
	assert.Equal(t, int64(1), summary.Written)
	assert.Equal(t, int64(1), summary.Skipped)
	assert.Equal(t, int64(1), summary.NotFound)
	assert.Equal(t, int64(1), summary.Failed)
}

func TestRunFatalErrorAborts(t *testing.T) {
	sink := &fakeSink{
		stream: "Products",
		results: []core.Result{
			{Outcome: core.OutcomeFailed, Err: errors.New(errors.ErrorTypeAuthentication, "authentication failed")},
		},
	}
	dest := &fakeDestination{sinks: map[string]*fakeSink{"Products": sink}}

	input := strings.Join([]string{
		`{"type":"RECORD","stream":"Products","record":{"name":"x"}}`,
		`{"type":"RECORD","stream":"Products","record":{"name":"y"}}`,
	}, "\n")

	_, err := New(dest, nil, zap.NewNop()).Run(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.Len(t, sink.seen, 1)
}

func TestRunUnknownStreamAborts(t *testing.T) {
	dest := &fakeDestination{sinks: map[string]*fakeSink{}}
	input := `{"type":"RECORD","stream":"Invoices","record":{}}`

	_, err := New(dest, nil, zap.NewNop()).Run(context.Background(), strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRunMalformedLineAborts(t *testing.T) {
	dest := &fakeDestination{sinks: map[string]*fakeSink{}}
	_, err := New(dest, nil, zap.NewNop()).Run(context.Background(), strings.NewReader(`{not json`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestDecodeMessage(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"type":"RECORD","stream":"Products","record":{"name":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, MessageTypeRecord, msg.Type)
	assert.Equal(t, "Products", msg.Stream)

	msg, err = DecodeMessage([]byte("   "))
	require.NoError(t, err)
	assert.Nil(t, msg)

	_, err = DecodeMessage([]byte(`{"stream":"Products"}`))
	require.Error(t, err)

	_, err = DecodeMessage([]byte(`{"type":"RECORD"}`))
	require.Error(t, err)
}
