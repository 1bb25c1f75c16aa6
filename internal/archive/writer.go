package archive

import (
	"fmt"

	"bar/internal/chunk"
	"bar/internal/compressor"
	"bar/internal/secmem"
	"bar/internal/storage"
	"bar/internal/symcipher"
)

// Writer drives the producer side of an archive: for each file it
// opens a FILE/FILE_ENTRY/FILE_DATA chunk tree, runs payload bytes
// through compress-then-encrypt, and rotates to a new storage part
// when the configured part size would otherwise be exceeded.
type Writer struct {
	stem        string
	maxPartSize int64
	opts        storage.Options

	compressAlg compressor.Algorithm
	cryptAlg    symcipher.Algorithm
	password    *secmem.Password

	partNumber int
	current    storage.Backend

	fileChunk *chunk.Info
	dataChunk *chunk.Info

	entryCipher *symcipher.Cipher
	dataCipher  *symcipher.Cipher
	comp        *compressor.Compressor

	fields     fileFields
	dataFields dataFields
	lastEntry  entryFields

	logicalOffset uint64 // running partOffset for the file currently open
	blockLength   uint64
}

// NewWriter begins a new archive at the given storage stem (a
// filesystem path or storage URL). maxPartSize of 0 means a single,
// unsplit archive file.
func NewWriter(stem string, maxPartSize int64, compressAlg compressor.Algorithm, cryptAlg symcipher.Algorithm, password *secmem.Password, opts storage.Options) (*Writer, error) {
	return &Writer{
		stem:        stem,
		maxPartSize: maxPartSize,
		opts:        opts,
		compressAlg: compressAlg,
		cryptAlg:    cryptAlg,
		password:    password,
	}, nil
}

func (w *Writer) partPath() string {
	if w.maxPartSize <= 0 {
		return w.stem
	}
	return fmt.Sprintf("%s.%06d", w.stem, w.partNumber)
}

func (w *Writer) openPart() error {
	backend, err := storage.Create(w.partPath(), w.maxPartSize, w.opts)
	if err != nil {
		return fmt.Errorf("archive: opening part %d: %w", w.partNumber, err)
	}
	w.partNumber++
	w.current = backend
	return nil
}

// WriteKeyEnvelope writes a root-level KEY chunk carrying the
// base64-encoded RSA envelope from keystore.WrapRandomPassword, for
// archives using asymmetric key wrapping instead of a bare password.
// It must be called before the first NewFile, since KEY sits alongside
// FILE chunks at the top level rather than nested under one.
func (w *Writer) WriteKeyEnvelope(envelopeBase64 string) error {
	if w.current == nil {
		if err := w.openPart(); err != nil {
			return err
		}
	}
	fields := keyFields{Envelope: envelopeBase64}
	keyChunk, err := chunk.Create(nil, w.current, 0, nil, chunk.IDKey, fields.definition())
	if err != nil {
		return fmt.Errorf("archive: create KEY chunk: %w", err)
	}
	return chunk.Close(keyChunk)
}

// NewFile begins a new FILE chunk for the given logical name and
// metadata, opening the nested FILE_ENTRY and FILE_DATA chunks.
func (w *Writer) NewFile(meta Metadata) error {
	entryCipher, err := symcipher.New(w.cryptAlg, w.password)
	if err != nil {
		return fmt.Errorf("archive: entry cipher: %w", err)
	}
	dataCipher, err := symcipher.New(w.cryptAlg, w.password)
	if err != nil {
		return fmt.Errorf("archive: data cipher: %w", err)
	}
	w.entryCipher = entryCipher
	w.dataCipher = dataCipher
	w.blockLength = uint64(dataCipher.BlockLength())

	comp, err := compressor.NewCompressor(w.compressAlg, int(w.blockLengthOrDefault()))
	if err != nil {
		return fmt.Errorf("archive: compressor: %w", err)
	}
	w.comp = comp

	w.fields = fileFields{
		CompressAlgorithm: uint8(w.compressAlg),
		CryptAlgorithm:    uint8(w.cryptAlg),
	}
	entry := metadataToFields(meta)
	w.lastEntry = entry
	w.dataFields = dataFields{PartOffset: 0, PartSize: 0}
	w.logicalOffset = 0

	headerLength := w.estimateHeaderLength(&entry)

	if err := w.ensureHeaderSpace(headerLength); err != nil {
		return err
	}
	return w.openChunks(&entry, 0, 0)
}

func (w *Writer) blockLengthOrDefault() uint64 {
	if w.blockLength == 0 {
		return 4
	}
	return w.blockLength
}

func (w *Writer) estimateHeaderLength(entry *entryFields) uint64 {
	fileDef := w.fields.definition()
	entryDef := entry.definition()
	dataDef := w.dataFields.definition()
	return 3*chunk.HeaderSize + uint64(fileDef.Size()) + uint64(entryDef.Size()) + uint64(dataDef.Size())
}

func (w *Writer) ensureHeaderSpace(headerLength uint64) error {
	if w.current == nil {
		return w.openPart()
	}
	if w.maxPartSize <= 0 {
		return nil
	}
	pos, err := w.current.Tell()
	if err != nil {
		return err
	}
	if pos+headerLength >= uint64(w.maxPartSize) {
		if err := w.current.Close(); err != nil {
			return err
		}
		w.current = nil
		return w.openPart()
	}
	return nil
}

func (w *Writer) openChunks(entry *entryFields, partOffset, partSize uint64) error {
	fileChunk, err := chunk.Create(nil, w.current, 0, nil, chunk.IDFile, w.fields.definition())
	if err != nil {
		return fmt.Errorf("archive: create FILE chunk: %w", err)
	}
	entryChunk, err := chunk.Create(fileChunk, w.current, uint64(w.entryCipher.BlockLength()), w.entryCipher, chunk.IDFileEntry, entry.definition())
	if err != nil {
		return fmt.Errorf("archive: create FILE_ENTRY chunk: %w", err)
	}
	if err := chunk.Close(entryChunk); err != nil {
		return err
	}

	w.dataFields.PartOffset = partOffset
	w.dataFields.PartSize = partSize
	dataChunk, err := chunk.Create(fileChunk, w.current, uint64(w.dataCipher.BlockLength()), w.dataCipher, chunk.IDFileData, w.dataFields.definition())
	if err != nil {
		return fmt.Errorf("archive: create FILE_DATA chunk: %w", err)
	}

	w.fileChunk = fileChunk
	w.dataChunk = dataChunk
	return nil
}

// WriteFileData feeds payload bytes through the compressor, encrypting
// and emitting full blocks as they become available, rotating parts
// per the configured part policy.
func (w *Writer) WriteFileData(data []byte) error {
	for _, b := range data {
		if err := w.comp.DeflateByte(b); err != nil {
			return err
		}
		for w.comp.BlockIsFull() {
			if err := w.emitBlock(); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitBlock extracts one block from the compressor, encrypts it, and
// writes it into the current FILE_DATA chunk, rotating to a new part
// first if required. The final residual block at CloseFile may have a
// pre-pad length shorter than a full block.
func (w *Writer) emitBlock() error {
	block := make([]byte, w.blockLengthOrDefault())
	preLen, err := w.comp.GetBlock(block)
	if err != nil {
		return err
	}
	if preLen == 0 {
		return nil
	}

	if w.maxPartSize > 0 {
		pos, err := w.current.Tell()
		if err != nil {
			return err
		}
		if pos+uint64(len(block)) > uint64(w.maxPartSize) {
			if err := w.rotatePart(); err != nil {
				return err
			}
		}
	}

	// Encrypted after any rotation above: rotatePart reopens FILE_DATA
	// with the data cipher bound to its header, which resets the CBC
	// chain to a defined per-part state. Encrypting before that reset
	// would mix a boundary-straddling block's ciphertext across two
	// different chain states.
	if err := w.dataCipher.Encrypt(block); err != nil {
		return err
	}

	if err := chunk.WriteData(w.dataChunk, block); err != nil {
		return err
	}
	w.dataFields.PartSize += uint64(preLen)
	w.logicalOffset += uint64(preLen)
	return nil
}

// rotatePart closes the current chunk tree and storage part, then
// reopens fresh chunks in a new part with partOffset continuing where
// the previous part left off.
func (w *Writer) rotatePart() error {
	if err := w.closeChunks(); err != nil {
		return err
	}
	if err := w.current.Close(); err != nil {
		return err
	}
	w.current = nil
	if err := w.openPart(); err != nil {
		return err
	}

	nextOffset := w.dataFields.PartOffset + w.dataFields.PartSize
	return w.openChunksForRotation(nextOffset)
}

// openChunksForRotation reopens FILE/FILE_ENTRY/FILE_DATA in a freshly
// rotated part. The entry metadata is unchanged across parts of the
// same file, so it is re-serialized from the fields already captured on
// the writer.
func (w *Writer) openChunksForRotation(partOffset uint64) error {
	fileChunk, err := chunk.Create(nil, w.current, 0, nil, chunk.IDFile, w.fields.definition())
	if err != nil {
		return err
	}
	entryChunk, err := chunk.Create(fileChunk, w.current, uint64(w.entryCipher.BlockLength()), w.entryCipher, chunk.IDFileEntry, w.lastEntry.definition())
	if err != nil {
		return err
	}
	if err := chunk.Close(entryChunk); err != nil {
		return err
	}

	w.dataFields.PartOffset = partOffset
	w.dataFields.PartSize = 0
	dataChunk, err := chunk.Create(fileChunk, w.current, uint64(w.dataCipher.BlockLength()), w.dataCipher, chunk.IDFileData, w.dataFields.definition())
	if err != nil {
		return err
	}

	w.fileChunk = fileChunk
	w.dataChunk = dataChunk
	return nil
}

func (w *Writer) closeChunks() error {
	if err := chunk.Update(w.dataChunk, w.dataFields.definition()); err != nil {
		return err
	}
	if err := chunk.Close(w.dataChunk); err != nil {
		return err
	}
	return chunk.Close(w.fileChunk)
}

// CloseFile flushes any residual compressor bytes as a final zero-padded
// block and closes the chunk tree for the file just written.
func (w *Writer) CloseFile() error {
	if err := w.comp.Flush(); err != nil {
		return err
	}
	for !w.comp.BlockIsEmpty() {
		if err := w.emitBlock(); err != nil {
			return err
		}
	}
	return w.closeChunks()
}

// Close finalizes the archive, closing the last open storage part.
func (w *Writer) Close() error {
	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	return err
}
