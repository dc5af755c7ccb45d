package enrich

// Result reports whether an enrichment invocation wrote anything.
type Result string

const (
	ResultWritten Result = "written"
	ResultSkipped Result = "skipped"
)
