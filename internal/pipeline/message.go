package pipeline

import (
	"fmt"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/optisync/optiply-target/pkg/errors"
)

// Singer-style message types accepted on the input stream.
const (
	MessageTypeRecord = "RECORD"
	MessageTypeSchema = "SCHEMA"
	MessageTypeState  = "STATE"
)

// Message is one line of the JSONL input stream.
type Message struct {
	Type          string                 `json:"type"`
	Stream        string                 `json:"stream,omitempty"`
	Record        map[string]interface{} `json:"record,omitempty"`
	Schema        gojson.RawMessage      `json:"schema,omitempty"`
	KeyProperties []string               `json:"key_properties,omitempty"`
	Value         gojson.RawMessage      `json:"value,omitempty"`
	TimeExtracted string                 `json:"time_extracted,omitempty"`
}

// DecodeMessage parses one input line. Blank lines return (nil, nil).
func DecodeMessage(line []byte) (*Message, error) {
	if len(strings.TrimSpace(string(line))) == 0 {
		return nil, nil
	}
	var msg Message
	if err := gojson.Unmarshal(line, &msg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "malformed input line")
	}
	if msg.Type == "" {
		return nil, errors.New(errors.ErrorTypeData, "input line missing type")
	}
	if msg.Type == MessageTypeRecord && msg.Stream == "" {
		return nil, errors.New(errors.ErrorTypeData, "RECORD message missing stream")
	}
	return &msg, nil
}

// Encode renders a message back to its single-line wire form.
func (m *Message) Encode() ([]byte, error) {
	out, err := gojson.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return out, nil
}
