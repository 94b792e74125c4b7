package optiply

import (
	"fmt"
	"strings"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/models"
)

// supplierHook coerces loosely typed supplier fields into the shapes the API
// accepts. Sources frequently deliver booleans and numbers as strings, and
// emails as a JSON-encoded array.
func supplierHook(b *PayloadBuilder, record *models.Record, bc *BuildContext) error {
	attrs := bc.Payload.Data.Attributes

	if raw, ok := attrs["emails"]; ok {
		if s, isString := raw.(string); isString {
			var emails []string
			if err := gojson.Unmarshal([]byte(s), &emails); err != nil {
				return errors.Wrap(err, errors.ErrorTypeValidation, "malformed emails JSON")
			}
			attrs["emails"] = emails
		}
	}

	for _, field := range []string{"backorders", "reactingToLostSales"} {
		if raw, ok := attrs[field]; ok {
			if s, isString := raw.(string); isString {
				switch strings.ToLower(strings.TrimSpace(s)) {
				case "true", "1":
					attrs[field] = true
				case "false", "0":
					attrs[field] = false
				default:
					return errors.New(errors.ErrorTypeValidation,
						fmt.Sprintf("field %s is not a boolean: %q", field, s))
				}
			}
		}
	}

	for _, field := range []string{"leadTime", "deliveryTime"} {
		if raw, ok := attrs[field]; ok {
			n, err := coerceInt(raw)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeValidation,
					fmt.Sprintf("field %s is not an integer", field))
			}
			attrs[field] = n
		}
	}

	for _, field := range []string{"minimumOrderValue", "fixedCosts", "orderCosts"} {
		if raw, ok := attrs[field]; ok {
			f, err := coerceFloat(raw)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeValidation,
					fmt.Sprintf("field %s is not a number", field))
			}
			attrs[field] = f
		}
	}

	if raw, ok := attrs["type"]; ok {
		s, _ := raw.(string)
		switch s {
		case "vendor", "producer":
		default:
			attrs["type"] = "vendor"
		}
	}

	// The API rejects GLNs that are not exactly 13 digits; drop rather than
	// fail the whole record.
	if raw, ok := attrs["globalLocationNumber"]; ok {
		if s, isString := raw.(string); !isString || len(s) != 13 {
			b.logger.Debug("dropping invalid globalLocationNumber",
				zap.Any("value", raw))
			delete(attrs, "globalLocationNumber")
		}
	}

	return nil
}

// buyOrderHook assembles the buy order payload. The record carries the
// supplier reference and an embedded line_items array; the hook expands the
// lines into included sub-resources and computes the order total.
func buyOrderHook(b *PayloadBuilder, record *models.Record, bc *BuildContext) error {
	attrs := bc.Payload.Data.Attributes

	if bc.Method == "PATCH" {
		if record.Has("expectedDeliveryDate") {
			attrs["expectedDeliveryDate"] = normalizeValue(record.Data["expectedDeliveryDate"])
		}
		if record.Has("status") {
			attrs["status"] = record.Data["status"]
		}
		return nil
	}

	attrs["createdFromPublicApi"] = true
	attrs["accountId"] = b.cfg.AccountID
	attrs["couplingId"] = b.cfg.CouplingID
	attrs["placed"] = normalizeValue(record.Data["transaction_date"])

	supplierID, err := coerceInt(record.Data["supplier_remoteId"])
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "supplier_remoteId is not an integer")
	}
	attrs["supplierId"] = supplierID

	if record.Has("expectedDeliveryDate") {
		attrs["expectedDeliveryDate"] = normalizeValue(record.Data["expectedDeliveryDate"])
	}

	items, err := parseLineItems(record.Data["line_items"])
	if err != nil {
		return err
	}
	lines, total, err := buildOrderLines(items, bc.Desc.LineItems)
	if err != nil {
		return err
	}
	attrs["totalValue"] = total
	bc.Payload.Included = lines

	return nil
}

// sellOrderHook expands an optional embedded line_items array into included
// sell order line sub-resources, recomputing the order total from the lines.
func sellOrderHook(b *PayloadBuilder, record *models.Record, bc *BuildContext) error {
	if bc.Method != "POST" {
		return nil
	}

	if !record.Has("line_items") {
		if tv, present := bc.Payload.Data.Attributes["totalValue"]; present {
			if f, err := coerceFloat(tv); err == nil {
				bc.Payload.Data.Attributes["totalValue"] = formatDecimal(f)
			}
		}
		return nil
	}

	items, err := parseLineItems(record.Data["line_items"])
	if err != nil {
		return err
	}
	lines, total, err := buildOrderLines(items, bc.Desc.LineItems)
	if err != nil {
		return err
	}
	bc.Payload.Data.Attributes["totalValue"] = total
	bc.Payload.Included = lines

	return nil
}
