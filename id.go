package perk

import "github.com/xraph/perk/id"

// ID identifies purchases, rewards, erasures and audit events.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
