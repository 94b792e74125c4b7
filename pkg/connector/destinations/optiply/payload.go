package optiply

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/models"
)

// ResourceObject is a JSON:API resource object.
type ResourceObject struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id,omitempty"`
	Attributes map[string]interface{} `json:"attributes"`
}

// WirePayload is the JSON:API envelope sent to the API. Constructed fresh per
// record and discarded after the request completes.
type WirePayload struct {
	Data     ResourceObject   `json:"data"`
	Included []ResourceObject `json:"included,omitempty"`
}

// Encode serializes the payload to its wire form.
func (p *WirePayload) Encode() ([]byte, error) {
	return gojson.Marshal(p)
}

// LineItem is one parsed entry of an order's embedded line_items array.
type LineItem struct {
	Quantity             int         `json:"quantity"`
	SubtotalValue        interface{} `json:"subtotalValue"`
	ProductID            int         `json:"productId"`
	ExpectedDeliveryDate string      `json:"expectedDeliveryDate,omitempty"`
}

// BuildContext carries per-build state into attribute hooks.
type BuildContext struct {
	Method  string
	Desc    *ResourceDescriptor
	Payload *WirePayload
}

// PayloadBuilder maps records into wire payloads for a resource descriptor.
// The builder never fails on missing optional fields; it returns a validation
// error only for mandatory-field violations or malformed structured fields,
// and the caller skips the record without issuing an HTTP call.
type PayloadBuilder struct {
	cfg    *ConnectionConfig
	logger *zap.Logger
}

// NewPayloadBuilder creates a payload builder bound to the connection config.
func NewPayloadBuilder(cfg *ConnectionConfig, logger *zap.Logger) *PayloadBuilder {
	return &PayloadBuilder{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "payload_builder")),
	}
}

// Build transforms a record into the wire payload for the given method.
// Validation failures return an ErrorTypeValidation error naming every
// violation; the record is then skipped, the run continues.
func (b *PayloadBuilder) Build(record *models.Record, desc *ResourceDescriptor, method string) (*WirePayload, error) {
	if method == "POST" {
		if err := checkMandatoryFields(record, desc.MandatoryFields); err != nil {
			return nil, err
		}
	}

	payload := &WirePayload{
		Data: ResourceObject{
			Type:       desc.ResourceType,
			Attributes: make(map[string]interface{}, len(desc.FieldMappings)),
		},
	}

	if method == "PATCH" {
		if id, ok := identifierValue(record, desc); ok {
			payload.Data.ID = id
		}
	}

	// Copy mapped fields in declaration order: absent and nil fields are
	// omitted, never sent as null. Booleans are forwarded whenever present,
	// including false. For PATCH this naturally restricts the payload to
	// the fields actually present in the record.
	for _, fm := range desc.FieldMappings {
		value, ok := record.Data[fm.Source]
		if !ok || value == nil {
			continue
		}
		payload.Data.Attributes[fm.Wire] = normalizeValue(value)
	}

	if desc.Hook != nil {
		bc := &BuildContext{Method: method, Desc: desc, Payload: payload}
		if err := desc.Hook(b, record, bc); err != nil {
			return nil, err
		}
	}

	return payload, nil
}

// checkMandatoryFields verifies every mandatory field is present, non-nil,
// and non-blank, reporting all violations at once.
func checkMandatoryFields(record *models.Record, mandatory []string) error {
	var missing []string
	for _, field := range mandatory {
		value, ok := record.Data[field]
		if !ok || value == nil {
			missing = append(missing, field)
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrorTypeValidation,
			fmt.Sprintf("missing mandatory fields: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// identifierValue returns the record's identifier as a string, when present.
func identifierValue(record *models.Record, desc *ResourceDescriptor) (string, bool) {
	field := desc.IdentifierField
	if field == "" {
		field = "id"
	}
	value, ok := record.Data[field]
	if !ok || value == nil {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatInt(int64(v), 10), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return fmt.Sprintf("%v", value), true
}

// normalizeValue converts timestamps to RFC3339 UTC with a trailing Z;
// a "+00:00" offset is replaced, not doubled. Non-timestamp values pass
// through untouched.
func normalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		return formatTimestamp(v.UTC())
	case string:
		if normalized, ok := normalizeTimestamp(v); ok {
			return normalized
		}
	}
	return value
}

// normalizeTimestamp reports whether s is an RFC3339 timestamp, and if so
// returns it converted to UTC in Z-suffixed form.
func normalizeTimestamp(s string) (string, bool) {
	// Cheap shape check before parsing: timestamps start like "2006-01-02T".
	if len(s) < 11 || s[4] != '-' || s[7] != '-' || s[10] != 'T' {
		return "", false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", false
	}
	return formatTimestamp(t.UTC()), true
}

// formatTimestamp renders t in Z-suffixed RFC3339, keeping fractional
// seconds when the source carried them.
func formatTimestamp(t time.Time) string {
	if t.Nanosecond() != 0 {
		return t.Format(time.RFC3339Nano)
	}
	return t.Format(time.RFC3339)
}

// parseLineItems decodes the JSON-encoded line_items field of an order
// record. Malformed JSON skips the record.
func parseLineItems(raw interface{}) ([]LineItem, error) {
	s, ok := raw.(string)
	if !ok {
		// Some pipelines deliver the array pre-parsed
		encoded, err := gojson.Marshal(raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed line_items")
		}
		s = string(encoded)
	}

	var items []LineItem
	if err := gojson.Unmarshal([]byte(s), &items); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed line_items JSON")
	}
	return items, nil
}

// buildOrderLines turns parsed line items into included sub-resources and
// returns the computed order total.
func buildOrderLines(items []LineItem, lineType string) ([]ResourceObject, string, error) {
	lines := make([]ResourceObject, 0, len(items))
	var total float64

	for i, item := range items {
		subtotal, err := coerceFloat(item.SubtotalValue)
		if err != nil {
			return nil, "", errors.Wrap(err, errors.ErrorTypeValidation,
				fmt.Sprintf("line item %d: invalid subtotalValue", i))
		}
		total += subtotal

		attrs := map[string]interface{}{
			"quantity":      item.Quantity,
			"subtotalValue": formatDecimal(subtotal),
			"productId":     item.ProductID,
		}
		if item.ExpectedDeliveryDate != "" {
			attrs["expectedDeliveryDate"] = normalizeValue(item.ExpectedDeliveryDate)
		}
		lines = append(lines, ResourceObject{Type: lineType, Attributes: attrs})
	}

	return lines, formatDecimal(total), nil
}

// coerceFloat accepts numbers and numeric strings.
func coerceFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	return 0, fmt.Errorf("not a number: %v", value)
}

// coerceInt accepts integers, integral floats, and integer strings.
// Fractional floats are rejected rather than silently truncated.
func coerceInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	}
	return 0, fmt.Errorf("not an integer: %v", value)
}

// formatDecimal renders monetary values with two decimal places, the form
// the API stores for subtotal and total values.
func formatDecimal(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
