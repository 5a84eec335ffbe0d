package domain

// Comparable field sets, version 1. Comparison and conflict semantics run
// over these explicit lists so the diff surface stays auditable; unknown
// keys on a record are ignored.
var comparableFieldsV1 = map[string][]string{
	EntityCustomers: {"email", "first_name", "last_name", "phone", "company"},
	EntityProducts:  {"sku", "name", "price", "stock_quantity", "description"},
	EntityOrders:    {"order_number", "status", "total", "currency", "customer_email"},
	EntityInventory: {"sku", "quantity_on_hand", "quantity_allocated", "warehouse"},
}

// FieldSetVersion identifies the active comparable-field list.
const FieldSetVersion = 1

// ComparableFields returns the versioned field list for an entity type.
// Unknown entity types fall back to the customer list.
func ComparableFields(entityType string) []string {
	if fields, ok := comparableFieldsV1[entityType]; ok {
		return fields
	}
	return comparableFieldsV1[EntityCustomers]
}

// RecordRef is local bookkeeping for one record: the identity mapping plus
// content hashes used to classify it as updated or unchanged without
// re-reading the full record.
type RecordRef struct {
	// ExternalID identifies the record in the external system.
	ExternalID string

	// InternalID identifies the local record.
	InternalID string

	// Hash is the current content hash of the local record.
	Hash string

	// SyncedHash is the content hash at the last successful sync.
	// A record with Hash != SyncedHash is classified as updated.
	SyncedHash string
}

// Changed reports whether the local record drifted since its last sync.
func (r RecordRef) Changed() bool {
	return r.Hash != r.SyncedHash
}
