package archive

import (
	"bar/internal/chunk"
	"bar/internal/compressor"
	"bar/internal/secmem"
	"bar/internal/storage"
	"bar/internal/symcipher"
)

// Entry is one file's listing: everything archive.Lister reports
// without decompressing payload bytes.
type Entry struct {
	Name              string
	Size              uint64
	PartOffset        uint64
	PartSize          uint64
	CompressAlgorithm compressor.Algorithm
	CryptAlgorithm    symcipher.Algorithm
}

// Lister walks an archive's FILE chunks and reports each one's
// metadata and data-fragment bounds without running the payload
// through the decompressor. A password is still required: FILE_ENTRY
// (name, size, timestamps) and the FILE_DATA chunk's own (partOffset,
// partSize) header fields are both encrypted the same as file payload.
type Lister struct {
	r *Reader
}

// NewLister opens stem for listing with the given password.
func NewLister(stem string, password *secmem.Password, opts storage.Options) (*Lister, error) {
	r, err := NewReader(stem, password, opts)
	if err != nil {
		return nil, err
	}
	return &Lister{r: r}, nil
}

// Next advances to the next FILE chunk and returns its listing entry,
// skipping over the FILE_DATA payload bytes unread. Returns
// ErrEndOfArchive once every part has been scanned.
func (l *Lister) Next() (Entry, error) {
	r := l.r
	for {
		if chunk.Eof(r.current) {
			if r.advancePart() {
				continue
			}
			return Entry{}, ErrEndOfArchive
		}
		header, err := chunk.Next(r.current)
		if err != nil {
			return Entry{}, err
		}
		if header.ID != chunk.IDFile {
			if err := chunk.Skip(r.current, header); err != nil {
				return Entry{}, err
			}
			continue
		}
		return l.readFileChunk(header)
	}
}

func (l *Lister) readFileChunk(header chunk.Header) (Entry, error) {
	r := l.r

	var fields fileFields
	fileChunk, err := chunk.Open(nil, r.current, header, chunk.IDFile, 0, nil, fields.definition())
	if err != nil {
		return Entry{}, err
	}

	cryptAlg := symcipher.Algorithm(fields.CryptAlgorithm)
	entryCipher, err := symcipher.New(cryptAlg, r.password)
	if err != nil {
		return Entry{}, err
	}
	dataCipher, err := symcipher.New(cryptAlg, r.password)
	if err != nil {
		return Entry{}, err
	}

	var entry entryFields
	var data dataFields
	haveEntry, haveData := false, false

	for !chunk.EofSub(fileChunk) {
		sub, err := chunk.NextSub(fileChunk)
		if err != nil {
			return Entry{}, err
		}
		switch sub.ID {
		case chunk.IDFileEntry:
			if _, err := chunk.Open(fileChunk, r.current, sub, chunk.IDFileEntry, uint64(entryCipher.BlockLength()), entryCipher, entry.definition()); err != nil {
				return Entry{}, err
			}
			haveEntry = true
		case chunk.IDFileData:
			if _, err := chunk.Open(fileChunk, r.current, sub, chunk.IDFileData, uint64(dataCipher.BlockLength()), dataCipher, data.definition()); err != nil {
				return Entry{}, err
			}
			haveData = true
			if err := chunk.SkipSub(fileChunk, sub); err != nil {
				return Entry{}, err
			}
		default:
			if err := chunk.SkipSub(fileChunk, sub); err != nil {
				return Entry{}, err
			}
		}
	}

	if !haveEntry {
		return Entry{}, ErrNoFileEntry
	}
	if !haveData {
		return Entry{}, ErrNoFileData
	}

	return Entry{
		Name:              entry.Name,
		Size:              entry.Size,
		PartOffset:        data.PartOffset,
		PartSize:          data.PartSize,
		CompressAlgorithm: compressor.Algorithm(fields.CompressAlgorithm),
		CryptAlgorithm:    cryptAlg,
	}, nil
}

// Close releases the underlying archive storage backend.
func (l *Lister) Close() error {
	return l.r.Close()
}
