package types

// Version is the canonical project version.
// The CLI, report schema, and record stream share this version.
const Version = "0.3.0"

// ReportVersion is the schema version stamped on reports and events.
const ReportVersion = Version
