package perk

import (
	"github.com/xraph/perk/quota"
	"github.com/xraph/perk/types"
)

// Re-export common types for convenience so users don't have to import types package.

// UserID is re-exported from types package.
type UserID = types.UserID

// Day is re-exported from types package.
type Day = types.Day

// Kind is re-exported from quota package.
type Kind = quota.Kind

// Re-export kinds
const (
	KindWriting  = quota.KindWriting
	KindSpeaking = quota.KindSpeaking
)

// Re-export parsers
var (
	ParseUserID = types.ParseUserID
	ParseKind   = quota.ParseKind
	DayOf       = types.DayOf
	LastDays    = types.LastDays
)
