package chunk

// ID identifies a chunk type. Values are frozen once an archive format
// version ships, since archives carry the raw ID on disk; never
// renumber an existing constant, only append.
type ID uint32

const (
	None ID = iota
	IDFile
	IDFileEntry
	IDFileData
	IDKey
)

var idNames = map[ID]string{
	None:        "NONE",
	IDFile:      "FILE",
	IDFileEntry: "FILE_ENTRY",
	IDFileData:  "FILE_DATA",
	IDKey:       "KEY",
}

func (id ID) String() string {
	if n, ok := idNames[id]; ok {
		return n
	}
	return "UNKNOWN"
}
