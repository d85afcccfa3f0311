package archive

// Archive stores collection-run snapshots under opaque names.
type Archive interface {
	Store(name string, data []byte) error
	Retrieve(name string) ([]byte, error)
	List(prefix string) ([]string, error)
	Delete(name string) error
}
