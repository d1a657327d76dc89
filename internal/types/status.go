package types

// Status is a type for the lifecycle status of a persisted resource in the database.
// This is used to track soft deletion and to determine if a row should be included in queries.
type Status string

const (
	StatusPublished Status = "published"
	StatusDeleted   Status = "deleted"
	StatusArchived  Status = "archived"
)

func (s Status) String() string {
	return string(s)
}
