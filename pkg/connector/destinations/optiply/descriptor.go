package optiply

import (
	"fmt"

	"github.com/optisync/optiply-target/pkg/errors"
	"github.com/optisync/optiply-target/pkg/models"
)

// FieldMapping maps one input record field to its wire attribute name.
// Mappings are applied in declaration order.
type FieldMapping struct {
	Source string
	Wire   string
}

// AttributeHook applies resource-specific post-processing that a static field
// map cannot express. Hooks mutate the payload under construction and may
// return a validation error, which skips the record.
type AttributeHook func(b *PayloadBuilder, record *models.Record, bc *BuildContext) error

// ResourceDescriptor describes one resource kind: its wire type, endpoint
// path, field map, creation-time mandatory fields, and optional hook.
// Descriptors are immutable; the table below is the closed set of supported
// kinds. Adding a kind means adding a descriptor (and hook, if needed) here.
type ResourceDescriptor struct {
	// ResourceType is the JSON:API type discriminant (e.g. "buyOrders")
	ResourceType string
	// EndpointPath is appended to the API base URL; case-sensitive
	EndpointPath string
	// FieldMappings maps record fields to wire attributes, in order
	FieldMappings []FieldMapping
	// MandatoryFields must be present and non-blank for POST requests
	MandatoryFields []string
	// IdentifierField marks a record as an update when present; PATCH when set
	IdentifierField string
	// SupportsPatch gates partial updates for the resource kind
	SupportsPatch bool
	// Hook applies resource-specific post-processing, may be nil
	Hook AttributeHook
	// LineItems enables embedded line-item parsing into an included array
	// with the given sub-resource type ("" disables it)
	LineItems string
}

// descriptors is the dispatch table over the supported stream kinds.
// Replaces per-resource subclassing with data-described descriptors.
var descriptors = map[string]*ResourceDescriptor{
	"Products": {
		ResourceType: "products",
		EndpointPath: "products",
		FieldMappings: []FieldMapping{
			{Source: "name", Wire: "name"},
			{Source: "skuCode", Wire: "skuCode"},
			{Source: "eanCode", Wire: "eanCode"},
			{Source: "articleCode", Wire: "articleCode"},
			{Source: "price", Wire: "price"},
			{Source: "stockLevel", Wire: "stockLevel"},
			{Source: "unlimitedStock", Wire: "unlimitedStock"},
			{Source: "notBeingBought", Wire: "notBeingBought"},
			{Source: "resumingPurchase", Wire: "resumingPurchase"},
			{Source: "status", Wire: "status"},
			{Source: "remoteDataSyncedToDate", Wire: "remoteDataSyncedToDate"},
		},
		MandatoryFields: []string{"name", "stockLevel", "unlimitedStock"},
		IdentifierField: "id",
		SupportsPatch:   true,
	},
	"Suppliers": {
		ResourceType: "suppliers",
		EndpointPath: "suppliers",
		FieldMappings: []FieldMapping{
			{Source: "name", Wire: "name"},
			{Source: "remoteId", Wire: "remoteId"},
			{Source: "emails", Wire: "emails"},
			{Source: "type", Wire: "type"},
			{Source: "globalLocationNumber", Wire: "globalLocationNumber"},
			{Source: "leadTime", Wire: "leadTime"},
			{Source: "minimumOrderValue", Wire: "minimumOrderValue"},
			{Source: "fixedCosts", Wire: "fixedCosts"},
			{Source: "orderCosts", Wire: "orderCosts"},
			{Source: "deliveryTime", Wire: "deliveryTime"},
			{Source: "backorders", Wire: "backorders"},
			{Source: "reactingToLostSales", Wire: "reactingToLostSales"},
			{Source: "status", Wire: "status"},
		},
		MandatoryFields: []string{"name"},
		IdentifierField: "id",
		SupportsPatch:   true,
		Hook:            supplierHook,
	},
	"SupplierProducts": {
		ResourceType: "supplierProducts",
		EndpointPath: "supplierProducts",
		FieldMappings: []FieldMapping{
			{Source: "supplierId", Wire: "supplierId"},
			{Source: "productId", Wire: "productId"},
			{Source: "remoteId", Wire: "remoteId"},
			{Source: "price", Wire: "price"},
			{Source: "minimumPurchaseQuantity", Wire: "minimumPurchaseQuantity"},
			{Source: "lotSize", Wire: "lotSize"},
			{Source: "availability", Wire: "availability"},
			{Source: "availabilityDate", Wire: "availabilityDate"},
			{Source: "preferred", Wire: "preferred"},
			{Source: "deliveryTime", Wire: "deliveryTime"},
			{Source: "status", Wire: "status"},
		},
		MandatoryFields: []string{"supplierId", "productId"},
		IdentifierField: "id",
		SupportsPatch:   true,
	},
	"BuyOrders": {
		ResourceType:    "buyOrders",
		EndpointPath:    "buyOrders",
		MandatoryFields: []string{"transaction_date", "supplier_remoteId", "line_items"},
		IdentifierField: "id",
		SupportsPatch:   true,
		Hook:            buyOrderHook,
		LineItems:       "buyOrderLines",
	},
	"BuyOrderLines": {
		ResourceType: "buyOrderLines",
		EndpointPath: "buyOrderLines",
		FieldMappings: []FieldMapping{
			{Source: "buyOrderId", Wire: "buyOrderId"},
			{Source: "productId", Wire: "productId"},
			{Source: "quantity", Wire: "quantity"},
			{Source: "price", Wire: "price"},
			{Source: "status", Wire: "status"},
		},
		MandatoryFields: []string{"buyOrderId", "productId", "quantity", "price"},
		IdentifierField: "id",
		SupportsPatch:   true,
	},
	"SellOrders": {
		ResourceType: "sellOrders",
		EndpointPath: "sellOrders",
		FieldMappings: []FieldMapping{
			{Source: "placed", Wire: "placed"},
			{Source: "totalValue", Wire: "totalValue"},
			{Source: "remoteId", Wire: "remoteId"},
			{Source: "completed", Wire: "completed"},
			{Source: "status", Wire: "status"},
		},
		MandatoryFields: []string{"placed", "totalValue"},
		IdentifierField: "id",
		SupportsPatch:   true,
		Hook:            sellOrderHook,
		LineItems:       "sellOrderLines",
	},
	"SellOrderLines": {
		ResourceType: "sellOrderLines",
		EndpointPath: "sellOrderLines",
		FieldMappings: []FieldMapping{
			{Source: "sellOrderId", Wire: "sellOrderId"},
			{Source: "productId", Wire: "productId"},
			{Source: "quantity", Wire: "quantity"},
			{Source: "price", Wire: "price"},
			{Source: "status", Wire: "status"},
		},
		MandatoryFields: []string{"sellOrderId", "productId", "quantity", "price"},
		IdentifierField: "id",
		SupportsPatch:   true,
	},
}

// Resolve maps a logical stream name to its resource descriptor. Unknown
// stream names are configuration errors and abort the run.
func Resolve(streamName string) (*ResourceDescriptor, error) {
	desc, ok := descriptors[streamName]
	if !ok {
		return nil, errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("unsupported stream: %s", streamName))
	}
	return desc, nil
}

// Streams returns the supported stream names.
func Streams() []string {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	return names
}
