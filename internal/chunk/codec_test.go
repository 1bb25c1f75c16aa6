package chunk

import (
	"testing"

	"bar/internal/secmem"
	"bar/internal/symcipher"
)

func TestCreateCloseThenOpenRoundTrip(t *testing.T) {
	io := newMemIO()

	var compressAlgorithm, cryptAlgorithm uint8 = 5, 4
	def := Definition{
		{Kind: KindUint8, Uint8Ptr: &compressAlgorithm},
		{Kind: KindUint8, Uint8Ptr: &cryptAlgorithm},
	}

	info, err := Create(nil, io, 0, nil, IDFile, def)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := Close(info); err != nil {
		t.Fatalf("Close: %v", err)
	}

	io.Seek(0)
	header, err := Next(io)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if header.ID != IDFile {
		t.Fatalf("header.ID = %v, want %v", header.ID, IDFile)
	}
	if header.Size != 2 {
		t.Fatalf("header.Size = %d, want 2", header.Size)
	}

	var gotCompress, gotCrypt uint8
	readDef := Definition{
		{Kind: KindUint8, Uint8Ptr: &gotCompress},
		{Kind: KindUint8, Uint8Ptr: &gotCrypt},
	}
	readInfo, err := Open(nil, io, header, IDFile, 0, nil, readDef)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gotCompress != compressAlgorithm || gotCrypt != cryptAlgorithm {
		t.Fatalf("got (%d,%d), want (%d,%d)", gotCompress, gotCrypt, compressAlgorithm, cryptAlgorithm)
	}
	if readInfo.Size() != 2 {
		t.Fatalf("readInfo.Size() = %d, want 2", readInfo.Size())
	}
}

func TestNestedSubChunksAndData(t *testing.T) {
	io := newMemIO()

	var dummy uint8 = 1
	parentDef := Definition{{Kind: KindUint8, Uint8Ptr: &dummy}}
	parent, err := Create(nil, io, 0, nil, IDFile, parentDef)
	if err != nil {
		t.Fatalf("Create parent: %v", err)
	}

	var partOffset, partSize uint64
	childDef := Definition{
		{Kind: KindUint64, Uint64Ptr: &partOffset},
		{Kind: KindUint64, Uint64Ptr: &partSize},
	}
	child, err := Create(parent, io, 0, nil, IDFileData, childDef)
	if err != nil {
		t.Fatalf("Create child: %v", err)
	}
	payload := []byte("hello world")
	if err := WriteData(child, payload); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	partSize = uint64(len(payload))
	if err := Update(child, childDef); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := Close(child); err != nil {
		t.Fatalf("Close child: %v", err)
	}
	if err := Close(parent); err != nil {
		t.Fatalf("Close parent: %v", err)
	}

	io.Seek(0)
	topHeader, err := Next(io)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var readDummy uint8
	topInfo, err := Open(nil, io, topHeader, IDFile, 0, nil, Definition{{Kind: KindUint8, Uint8Ptr: &readDummy}})
	if err != nil {
		t.Fatalf("Open parent: %v", err)
	}

	if EofSub(topInfo) {
		t.Fatalf("expected a sub-chunk to read")
	}
	subHeader, err := NextSub(topInfo)
	if err != nil {
		t.Fatalf("NextSub: %v", err)
	}
	if subHeader.ID != IDFileData {
		t.Fatalf("subHeader.ID = %v, want %v", subHeader.ID, IDFileData)
	}

	var rOffset, rSize uint64
	subInfo, err := Open(topInfo, io, subHeader, IDFileData, 0, nil, Definition{
		{Kind: KindUint64, Uint64Ptr: &rOffset},
		{Kind: KindUint64, Uint64Ptr: &rSize},
	})
	if err != nil {
		t.Fatalf("Open child: %v", err)
	}
	if rSize != uint64(len(payload)) {
		t.Fatalf("rSize = %d, want %d", rSize, len(payload))
	}

	got := make([]byte, len(payload))
	if err := ReadData(subInfo, got); err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("ReadData = %q, want %q", got, payload)
	}

	if !EofSub(topInfo) {
		t.Fatalf("expected no more sub-chunks")
	}
}

func TestEncryptedDefinitionRoundTrip(t *testing.T) {
	io := newMemIO()
	pw := secmem.FromString("archive-password")
	writeCipher, err := symcipher.New(symcipher.AES128, pw)
	if err != nil {
		t.Fatalf("symcipher.New: %v", err)
	}
	readCipher, err := symcipher.New(symcipher.AES128, pw)
	if err != nil {
		t.Fatalf("symcipher.New: %v", err)
	}

	var uid, gid uint32 = 1000, 1000
	var name string = "example.txt"
	def := Definition{
		{Kind: KindUint32, Uint32Ptr: &uid},
		{Kind: KindUint32, Uint32Ptr: &gid},
		{Kind: KindName, NamePtr: &name},
	}

	info, err := Create(nil, io, uint64(writeCipher.BlockLength()), writeCipher, IDFileEntry, def)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := Close(info); err != nil {
		t.Fatalf("Close: %v", err)
	}

	io.Seek(0)
	header, err := Next(io)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	var rUID, rGID uint32
	var rName string
	readDef := Definition{
		{Kind: KindUint32, Uint32Ptr: &rUID},
		{Kind: KindUint32, Uint32Ptr: &rGID},
		{Kind: KindName, NamePtr: &rName},
	}
	if _, err := Open(nil, io, header, IDFileEntry, uint64(readCipher.BlockLength()), readCipher, readDef); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if rUID != uid || rGID != gid || rName != name {
		t.Fatalf("got (%d,%d,%q), want (%d,%d,%q)", rUID, rGID, rName, uid, gid, name)
	}
}

func TestCRC32FieldDetectsCorruption(t *testing.T) {
	io := newMemIO()
	var value uint32 = 42
	var crc uint32
	def := Definition{
		{Kind: KindUint32, Uint32Ptr: &value},
		{Kind: KindCRC32, Uint32Ptr: &crc},
	}
	info, err := Create(nil, io, 0, nil, IDFile, def)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := Close(info); err != nil {
		t.Fatalf("Close: %v", err)
	}

	io.data[HeaderSize] ^= 0xFF // corrupt the value field

	io.Seek(0)
	header, err := Next(io)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	var rValue, rCRC uint32
	readDef := Definition{
		{Kind: KindUint32, Uint32Ptr: &rValue},
		{Kind: KindCRC32, Uint32Ptr: &rCRC},
	}
	if _, err := Open(nil, io, header, IDFile, 0, nil, readDef); err == nil {
		t.Fatalf("expected CRC mismatch error")
	}
}
