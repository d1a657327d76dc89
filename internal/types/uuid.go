package types

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex inv_0ujsswThIGTUYm2K8FjOOfXtY1K
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_CUSTOMER          = "cust"
	UUID_PREFIX_PRODUCT           = "prod"
	UUID_PREFIX_CONTRACT          = "ctr"
	UUID_PREFIX_SUBSCRIPTION      = "subs"
	UUID_PREFIX_DUE_SCHEDULE      = "sched"
	UUID_PREFIX_INVOICE           = "inv"
	UUID_PREFIX_INVOICE_LINE_ITEM = "inv_line"
	UUID_PREFIX_OPEN_ITEM         = "oi"
	UUID_PREFIX_BATCH_RUN         = "batch"
	UUID_PREFIX_EVENT             = "event"
)
