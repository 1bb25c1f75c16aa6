package archive

import (
	"errors"
	"fmt"

	"bar/internal/chunk"
	"bar/internal/compressor"
	"bar/internal/secmem"
	"bar/internal/storage"
	"bar/internal/symcipher"
)

// ErrNoFileEntry is returned by ReadFile when a FILE chunk's sub-chunk
// sequence never yields a FILE_ENTRY.
var ErrNoFileEntry = errors.New("archive: FILE chunk has no FILE_ENTRY")

// ErrNoFileData is returned by ReadFile when a FILE chunk's sub-chunk
// sequence never yields a FILE_DATA.
var ErrNoFileData = errors.New("archive: FILE chunk has no FILE_DATA")

// Reader drives the consumer side of an archive: scanning the
// top-level chunk sequence for FILE chunks, decoding their metadata,
// and streaming decompressed/decrypted payload bytes back out.
type Reader struct {
	stem     string
	password *secmem.Password
	opts     storage.Options

	partNumber int
	split      bool // true once a part named stem.000000 was found, enabling automatic part rollover

	current storage.Backend

	fileChunk *chunk.Info
	dataChunk *chunk.Info

	dataCipher *symcipher.Cipher
	decomp     *compressor.Decompressor

	partOffset  uint64
	partSize    uint64
	dataRead    uint64
	blockLength int
}

// NewReader opens an archive for reading at the given storage stem. The
// stem is tried first as a single unsplit file; failing that, part 0
// of a split archive (stem.000000) is opened instead.
func NewReader(stem string, password *secmem.Password, opts storage.Options) (*Reader, error) {
	r := &Reader{stem: stem, password: password, opts: opts}
	if err := r.openPart(stem); err == nil {
		return r, nil
	}
	r.split = true
	if err := r.openPart(r.nextPartPath()); err != nil {
		return nil, err
	}
	r.partNumber++
	return r, nil
}

func (r *Reader) openPart(path string) error {
	backend, err := storage.Open(path, r.opts)
	if err != nil {
		return fmt.Errorf("archive: opening part %s: %w", path, err)
	}
	r.current = backend
	return nil
}

func (r *Reader) nextPartPath() string {
	return fmt.Sprintf("%s.%06d", r.stem, r.partNumber)
}

// advancePart closes the exhausted part and opens the next one, if the
// archive is split. Returns false once there is no further part.
func (r *Reader) advancePart() bool {
	if !r.split {
		return false
	}
	_ = r.current.Close()
	next := r.nextPartPath()
	if err := r.openPart(next); err != nil {
		return false
	}
	r.partNumber++
	return true
}

// ErrNoKeyChunk is returned by ReadKeyEnvelope when the archive's first
// top-level chunk is not a KEY chunk.
var ErrNoKeyChunk = errors.New("archive: no KEY chunk at archive start")

// ReadKeyEnvelope reads the root-level KEY chunk written by
// Writer.WriteKeyEnvelope and returns its base64-encoded RSA envelope.
// Call it once, immediately after NewReader and before the first
// ReadFile, and only when the archive is known to have been packed
// with a public key; an archive packed with a bare password has no
// KEY chunk to find.
func (r *Reader) ReadKeyEnvelope() (string, error) {
	header, err := chunk.Next(r.current)
	if err != nil {
		return "", err
	}
	if header.ID != chunk.IDKey {
		return "", ErrNoKeyChunk
	}
	var fields keyFields
	if _, err := chunk.Open(nil, r.current, header, chunk.IDKey, 0, nil, fields.definition()); err != nil {
		return "", err
	}
	return fields.Envelope, nil
}

// ReadFile advances to the next FILE chunk, skipping anything else,
// and returns its metadata plus the (partOffset, partSize) of its
// first FILE_DATA fragment.
func (r *Reader) ReadFile() (Metadata, uint64, uint64, error) {
	for {
		if chunk.Eof(r.current) {
			if r.advancePart() {
				continue
			}
			return Metadata{}, 0, 0, ErrEndOfArchive
		}
		header, err := chunk.Next(r.current)
		if err != nil {
			return Metadata{}, 0, 0, err
		}
		if header.ID != chunk.IDFile {
			if err := chunk.Skip(r.current, header); err != nil {
				return Metadata{}, 0, 0, err
			}
			continue
		}
		return r.readFileChunk(header)
	}
}

// ErrEndOfArchive is returned by ReadFile once every part has been
// scanned to its end with no further FILE chunk found.
var ErrEndOfArchive = errors.New("archive: no more files")

func (r *Reader) readFileChunk(header chunk.Header) (Metadata, uint64, uint64, error) {
	var fields fileFields
	fileChunk, err := chunk.Open(nil, r.current, header, chunk.IDFile, 0, nil, fields.definition())
	if err != nil {
		return Metadata{}, 0, 0, err
	}
	r.fileChunk = fileChunk

	cryptAlg := symcipher.Algorithm(fields.CryptAlgorithm)
	entryCipher, err := symcipher.New(cryptAlg, r.password)
	if err != nil {
		return Metadata{}, 0, 0, err
	}
	dataCipher, err := symcipher.New(cryptAlg, r.password)
	if err != nil {
		return Metadata{}, 0, 0, err
	}
	r.dataCipher = dataCipher
	r.blockLength = dataCipher.BlockLength()
	r.decomp = compressor.NewDecompressor(compressor.Algorithm(fields.CompressAlgorithm), r.blockLength)

	var entry entryFields
	var data dataFields
	haveEntry, haveData := false, false

	for !chunk.EofSub(fileChunk) {
		sub, err := chunk.NextSub(fileChunk)
		if err != nil {
			return Metadata{}, 0, 0, err
		}
		switch sub.ID {
		case chunk.IDFileEntry:
			if _, err := chunk.Open(fileChunk, r.current, sub, chunk.IDFileEntry, uint64(entryCipher.BlockLength()), entryCipher, entry.definition()); err != nil {
				return Metadata{}, 0, 0, err
			}
			haveEntry = true
		case chunk.IDFileData:
			dataInfo, err := chunk.Open(fileChunk, r.current, sub, chunk.IDFileData, uint64(dataCipher.BlockLength()), dataCipher, data.definition())
			if err != nil {
				return Metadata{}, 0, 0, err
			}
			r.dataChunk = dataInfo
			r.partOffset = data.PartOffset
			r.partSize = data.PartSize
			r.dataRead = 0
			haveData = true
		default:
			if err := chunk.SkipSub(fileChunk, sub); err != nil {
				return Metadata{}, 0, 0, err
			}
		}
	}

	if !haveEntry {
		return Metadata{}, 0, 0, ErrNoFileEntry
	}
	if !haveData {
		return Metadata{}, 0, 0, ErrNoFileData
	}
	return entry.toMetadata(), r.partOffset, r.partSize, nil
}

// ReadFileData drains up to len(buf) decompressed plaintext bytes into
// buf, refilling the decompressor from the current FILE_DATA chunk as
// needed. Continuation fragments in later parts are not read here; the
// next ReadFile call returns them. Returns the number of bytes copied,
// which is less than len(buf) only once the current fragment is
// exhausted.
func (r *Reader) ReadFileData(buf []byte) (int, error) {
	n := 0
	finished := false
	for n < len(buf) {
		b, err := r.decomp.InflateByte()
		if err == nil {
			buf[n] = b
			n++
			continue
		}
		if r.fillDecompressor() {
			continue
		}
		if !finished {
			if err := r.decomp.Finish(); err != nil {
				return n, err
			}
			finished = true
			continue
		}
		return n, nil
	}
	return n, nil
}

// fillDecompressor reads one more block's worth of encrypted bytes from
// the current FILE_DATA chunk and hands it to the decompressor. It
// returns false once the current fragment is exhausted.
func (r *Reader) fillDecompressor() bool {
	if r.dataRead >= r.partSize {
		return false
	}
	block := make([]byte, r.blockLength)
	if err := chunk.ReadData(r.dataChunk, block); err != nil {
		return false
	}
	if err := r.dataCipher.Decrypt(block); err != nil {
		return false
	}
	r.dataRead += uint64(r.blockLength)
	_ = r.decomp.PutBlock(block)
	return true
}

// CloseFile releases the chunk scopes for the file just read.
func (r *Reader) CloseFile() error {
	r.fileChunk = nil
	r.dataChunk = nil
	return nil
}

// Close releases the storage backend underlying the archive.
func (r *Reader) Close() error {
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}
