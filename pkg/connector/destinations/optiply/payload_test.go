package optiply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/models"
)

func testBuilder(t *testing.T) *PayloadBuilder {
	t.Helper()
	return NewPayloadBuilder(&ConnectionConfig{
		AccountID:  11,
		CouplingID: 42,
	}, zap.NewNop())
}

func testRecord(stream string, data map[string]interface{}) *models.Record {
	record := models.NewRecord(stream)
	record.Data = data
	return record
}

func TestBuildProductPost(t *testing.T) {
	builder := testBuilder(t)
	desc, err := Resolve("Products")
	require.NoError(t, err)

	record := testRecord("Products", map[string]interface{}{
		"name":           "Widget",
		"stockLevel":     float64(10),
		"unlimitedStock": false,
		"price":          9.95,
		"eanCode":        nil,
	})

	payload, err := builder.Build(record, desc, "POST")
	require.NoError(t, err)

	assert.Equal(t, "products", payload.Data.Type)
	assert.Equal(t, "Widget", payload.Data.Attributes["name"])
	assert.Equal(t, float64(10), payload.Data.Attributes["stockLevel"])
	// false is a real value and must be sent
	assert.Equal(t, false, payload.Data.Attributes["unlimitedStock"])
	// nil fields are omitted, never sent as null
	assert.NotContains(t, payload.Data.Attributes, "eanCode")
	assert.Empty(t, payload.Included)
}

func TestBuildReportsAllMissingMandatoryFields(t *testing.T) {
	builder := testBuilder(t)
	desc, err := Resolve("Products")
	require.NoError(t, err)

	record := testRecord("Products", map[string]interface{}{
		"name": "   ",
	})

	_, err = builder.Build(record, desc, "POST")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "stockLevel")
	assert.Contains(t, err.Error(), "unlimitedStock")
}

func TestBuildPatchSendsOnlyPresentFields(t *testing.T) {
	builder := testBuilder(t)
	desc, err := Resolve("Products")
	require.NoError(t, err)

	record := testRecord("Products", map[string]interface{}{
		"id":         "123",
		"stockLevel": float64(5),
	})

	payload, err := builder.Build(record, desc, "PATCH")
	require.NoError(t, err)

	assert.Equal(t, "123", payload.Data.ID)
	assert.Equal(t, map[string]interface{}{"stockLevel": float64(5)}, payload.Data.Attributes)
}

func TestBuildNormalizesTimestamps(t *testing.T) {
	builder := testBuilder(t)
	desc, err := Resolve("SellOrders")
	require.NoError(t, err)

	record := testRecord("SellOrders", map[string]interface{}{
		"placed":     "2024-03-01T12:30:00+00:00",
		"totalValue": "15.5",
	})

	payload, err := builder.Build(record, desc, "POST")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-01T12:30:00Z", payload.Data.Attributes["placed"])
	assert.Equal(t, "15.50", payload.Data.Attributes["totalValue"])
}

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-01T12:30:00+00:00", "2024-03-01T12:30:00Z", true},
		{"2024-03-01T12:30:00Z", "2024-03-01T12:30:00Z", true},
		{"2024-03-01T14:30:00+02:00", "2024-03-01T12:30:00Z", true},
		{"2024-03-01T12:30:00.500+00:00", "2024-03-01T12:30:00.5Z", true},
		{"2024-03-01T14:30:00.123456789+02:00", "2024-03-01T12:30:00.123456789Z", true},
		{"not a timestamp", "", false},
		{"2024-03-01", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizeTimestamp(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

func TestBuildBuyOrderExpandsLineItems(t *testing.T) {
	builder := testBuilder(t)
	desc, err := Resolve("BuyOrders")
	require.NoError(t, err)

	record := testRecord("BuyOrders", map[string]interface{}{
		"transaction_date":  "2024-03-01T09:00:00+00:00",
		"supplier_remoteId": "77",
		"line_items":        `[{"quantity":2,"subtotalValue":"10.00","productId":5},{"quantity":1,"subtotalValue":5.5,"productId":6}]`,
	})

	payload, err := builder.Build(record, desc, "POST")
	require.NoError(t, err)

	attrs := payload.Data.Attributes
	assert.Equal(t, true, attrs["createdFromPublicApi"])
	assert.Equal(t, 11, attrs["accountId"])
	assert.Equal(t, 42, attrs["couplingId"])
	assert.Equal(t, "2024-03-01T09:00:00Z", attrs["placed"])
	assert.Equal(t, 77, attrs["supplierId"])
	assert.Equal(t, "15.50", attrs["totalValue"])

	require.Len(t, payload.Included, 2)
	first := payload.Included[0]
	assert.Equal(t, "buyOrderLines", first.Type)
	assert.Equal(t, 2, first.Attributes["quantity"])
	assert.Equal(t, "10.00", first.Attributes["subtotalValue"])
	assert.Equal(t, 5, first.Attributes["productId"])
}

func TestBuildBuyOrderMalformedLineItemsSkips(t *testing.T) {
	builder := testBuilder(t)
	desc, err := Resolve("BuyOrders")
	require.NoError(t, err)

	record := testRecord("BuyOrders", map[string]interface{}{
		"transaction_date":  "2024-03-01T09:00:00Z",
		"supplier_remoteId": "77",
		"line_items":        `{"not":"an array"`,
	})

	_, err = builder.Build(record, desc, "POST")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestBuildSellOrderWithLineItems(t *testing.T) {
	builder := testBuilder(t)
	desc, err := Resolve("SellOrders")
	require.NoError(t, err)

	record := testRecord("SellOrders", map[string]interface{}{
		"placed":     "2024-03-01T09:00:00Z",
		"totalValue": float64(99),
		"line_items": `[{"quantity":3,"subtotalValue":"30.00","productId":9}]`,
	})

	payload, err := builder.Build(record, desc, "POST")
	require.NoError(t, err)

	// totalValue is recomputed from the lines
	assert.Equal(t, "30.00", payload.Data.Attributes["totalValue"])
	require.Len(t, payload.Included, 1)
	assert.Equal(t, "sellOrderLines", payload.Included[0].Type)
}

func TestSupplierHookCoercions(t *testing.T) {
	builder := testBuilder(t)
	desc, err := Resolve("Suppliers")
	require.NoError(t, err)

	record := testRecord("Suppliers", map[string]interface{}{
		"name":                 "Acme BV",
		"emails":               `["a@acme.test","b@acme.test"]`,
		"backorders":           "true",
		"reactingToLostSales":  "false",
		"leadTime":             "14",
		"minimumOrderValue":    "250.00",
		"type":                 "distributor",
		"globalLocationNumber": "123",
	})

	payload, err := builder.Build(record, desc, "POST")
	require.NoError(t, err)

	attrs := payload.Data.Attributes
	assert.Equal(t, []string{"a@acme.test", "b@acme.test"}, attrs["emails"])
	assert.Equal(t, true, attrs["backorders"])
	assert.Equal(t, false, attrs["reactingToLostSales"])
	assert.Equal(t, 14, attrs["leadTime"])
	assert.Equal(t, 250.0, attrs["minimumOrderValue"])
	// unknown supplier types fall back to vendor
	assert.Equal(t, "vendor", attrs["type"])
	// invalid GLN is dropped, not fatal
	assert.NotContains(t, attrs, "globalLocationNumber")
}

func TestSupplierHookFractionalLeadTime(t *testing.T) {
	builder := testBuilder(t)
	desc, err := Resolve("Suppliers")
	require.NoError(t, err)

	record := testRecord("Suppliers", map[string]interface{}{
		"name":     "Acme BV",
		"leadTime": 14.7,
	})

	_, err = builder.Build(record, desc, "POST")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "leadTime")
}

func TestCoerceInt(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    int
		wantErr bool
	}{
		{14, 14, false},
		{int64(14), 14, false},
		{14.0, 14, false},
		{"14", 14, false},
		{14.7, 0, true},
		{"14.7", 0, true},
		{"nope", 0, true},
	}
	for _, tt := range tests {
		got, err := coerceInt(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSupplierHookMalformedEmails(t *testing.T) {
	builder := testBuilder(t)
	desc, err := Resolve("Suppliers")
	require.NoError(t, err)

	record := testRecord("Suppliers", map[string]interface{}{
		"name":   "Acme BV",
		"emails": "not json",
	})

	_, err = builder.Build(record, desc, "POST")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestResolveUnknownStream(t *testing.T) {
	_, err := Resolve("Invoices")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
