package models

// MatchOp is a predicate operator understood by the account store.
type MatchOp string

const (
	OpEquals     MatchOp = "eq"     // column = value
	OpContains   MatchOp = "cs"     // array column contains value
	OpJSONEquals MatchOp = "jsoneq" // jsonb column structurally equals value
)

// Columns the account store accepts in match clauses
const (
	ColumnDiscordID          = "discord_id"
	ColumnEmail              = "email"
	ColumnDeviceFingerprint  = "device_fingerprint"
	ColumnIPAddresses        = "ip_addresses"
	ColumnBrowserFingerprint = "browser_fingerprint"
)

// MatchClause is a single predicate of an account filter.
type MatchClause struct {
	Column string
	Op     MatchOp
	Value  string
}

// AnyOf matches an account when at least one clause holds.
type AnyOf []MatchClause
