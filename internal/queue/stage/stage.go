// Package stage encodes the closed set of download stages: each fixes a
// predicate over index_documents and an overall item cap (spec.md §4.5).
// Grounded on original_source/madison_county_doc_puller/staged_downloader.py
// and download_queue_manager.py's STAGE_CONFIGS table.
package stage

// Name is one of the six closed stage identifiers.
type Name string

const (
	Test           Name = "test"
	HistoricalAll  Name = "historical-all"
	Small          Name = "small"
	Medium         Name = "medium"
	Large          Name = "large"
	RetryFailed    Name = "retry-failed"
)

// Unbounded marks a stage with no overall item cap.
const Unbounded = -1

// Config is one stage's predicate (expressed as a SQL WHERE fragment over
// index_documents, parameterized starting at $1) and its cap.
type Config struct {
	Name  Name
	Where string
	Cap   int
}

// All enumerates the six stages in the order spec.md's table lists them.
var All = []Config{
	{
		Name:  Test,
		Where: "download_status = 'pending' AND book IS NOT NULL AND (book % 500) = 0",
		Cap:   20,
	},
	{
		Name:  HistoricalAll,
		Where: "download_status = 'pending' AND book IS NOT NULL AND book < 238",
		Cap:   Unbounded,
	},
	{
		Name:  Small,
		Where: "download_status = 'pending' AND download_priority IN (1,2) AND book IS NOT NULL AND (book % 50) = 0",
		Cap:   2000,
	},
	{
		Name:  Medium,
		Where: "download_status = 'pending' AND (download_priority IN (1,2) OR (download_priority = 3 AND (book % 10) = 0))",
		Cap:   50000,
	},
	{
		Name:  Large,
		Where: "download_status = 'pending' AND download_priority = 3 AND book >= 238 AND book < 3972",
		Cap:   Unbounded,
	},
	{
		Name:  RetryFailed,
		Where: "download_status = 'failed' AND download_attempts < $1",
		Cap:   Unbounded,
	},
}

// Lookup finds a stage config by name.
func Lookup(name Name) (Config, bool) {
	for _, c := range All {
		if c.Name == name {
			return c, true
		}
	}
	return Config{}, false
}

// NeedsMaxAttemptsParam reports whether this stage's Where clause expects
// MAX_ATTEMPTS as its first bind parameter (only retry-failed does).
func (c Config) NeedsMaxAttemptsParam() bool {
	return c.Name == RetryFailed
}
