package vulnquery

// Dataset column names projected by the built-in queries.
const (
	colRevision = "revision"
	colFilename = "file_name"
	colOrigin   = "origin"
	colBranch   = "branch"
)

// keySep separates fields inside a dedupe key so adjacent fields cannot
// run together.
const keySep = "\x1f"

// CommitRecord is one row of a commit query: a fixing revision together
// with the advisory it belongs to.
type CommitRecord struct {
	// RevisionID is the commit identifier the query matched on.
	RevisionID string `json:"revision_identifier"`
	// Filename names the advisory document; it may carry a directory-style
	// prefix that document fetchers strip.
	Filename string `json:"vulnerability_filename"`
	// Category is reserved; current queries do not project it.
	Category string `json:"category"`
}

func (r CommitRecord) dedupeKey() string {
	return r.RevisionID + keySep + r.Filename + keySep + r.Category
}

// OriginRecord is one row of an origin query: a repository origin with the
// fixing revision and branch for an advisory.
type OriginRecord struct {
	Origin     string `json:"origin"`
	RevisionID string `json:"revision_identifier"`
	Branch     string `json:"branch_name"`
	Filename   string `json:"vulnerability_filename"`
}

func (r OriginRecord) dedupeKey() string {
	return r.Origin + keySep + r.RevisionID + keySep + r.Branch + keySep + r.Filename
}
