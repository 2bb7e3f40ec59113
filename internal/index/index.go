package index

// NoteIndex defines the interface for the note metadata cache.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string, inline []string) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	Relations(kind string) ([]Relation, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
