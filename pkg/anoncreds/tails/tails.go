/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package tails reads and writes revocation tails files: binary sidecars
// holding the precomputed registry points witness computation needs random
// access to. A file carries a fixed-size header followed by one slot per
// tails index from 1 to twice the registry capacity; the slot at capacity+1
// is zero-filled and never read. Files are content-addressed: the canonical
// file name is the base58 form of the SHA-256 digest over the whole file,
// which is also the tails hash published in the registry definition.
package tails

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcutil/base58"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

var logger = log.New("anoncreds/tails")

const (
	headerSize = 128

	// Compressed BLS12-381 point sizes.
	g1PointSize = 48
	g2PointSize = 96
	entrySize   = g1PointSize + g2PointSize

	formatVersion = 1
)

// nolint:gochecknoglobals
var magic = []byte{'T', 'A', 'I', 'L'}

// File is an open tails sidecar supporting random access by tails index.
// Reads are safe for concurrent use.
type File struct {
	f        *os.File
	path     string
	hash     string
	capacity uint32
	count    uint32
}

// Create streams a new tails file into dir. The generate callback is invoked
// with an emit function and must produce entries in increasing index order;
// gaps are zero-filled. The finished file is renamed to its base58 hash.
func Create(dir string, capacity uint32, generate func(emit func(index uint32, entry *api.TailsEntry) error) error) (*File, error) {
	if capacity == 0 {
		return nil, anoncreds.NewError(anoncreds.Input, "tails capacity is zero")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "create tails directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "tails-*")
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "create tails file: %w", err)
	}

	defer func() {
		if tmp != nil {
			tmp.Close()           //nolint:errcheck,gosec
			os.Remove(tmp.Name()) //nolint:errcheck
		}
	}()

	count := 2 * capacity

	hasher := sha256.New()
	out := io.MultiWriter(tmp, hasher)

	if _, err := out.Write(marshalHeader(capacity, count)); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "write tails header: %w", err)
	}

	next := uint32(1)

	emit := func(index uint32, entry *api.TailsEntry) error {
		if index < next || index > count {
			return anoncreds.NewErrorf(anoncreds.Unexpected, "tails entry %d out of order", index)
		}

		if len(entry.G1) != g1PointSize || len(entry.G2) != g2PointSize {
			return anoncreds.NewErrorf(anoncreds.Unexpected, "tails entry %d has unexpected point size", index)
		}

		for ; next < index; next++ {
			if _, err := out.Write(make([]byte, entrySize)); err != nil {
				return anoncreds.NewErrorf(anoncreds.IOError, "write tails entry: %w", err)
			}
		}

		if _, err := out.Write(entry.G1); err != nil {
			return anoncreds.NewErrorf(anoncreds.IOError, "write tails entry: %w", err)
		}

		if _, err := out.Write(entry.G2); err != nil {
			return anoncreds.NewErrorf(anoncreds.IOError, "write tails entry: %w", err)
		}

		next++

		return nil
	}

	if err := generate(emit); err != nil {
		return nil, err
	}

	if next != count+1 {
		return nil, anoncreds.NewErrorf(anoncreds.Unexpected, "tails generator produced %d of %d entries", next-1, count)
	}

	if err := tmp.Close(); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "close tails file: %w", err)
	}

	hash := base58.Encode(hasher.Sum(nil))
	path := filepath.Join(dir, hash)

	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "finalize tails file: %w", err)
	}

	tmp = nil

	logger.Debugf("wrote tails file %s with %d entries", path, count)

	file, err := Open(path)
	if err != nil {
		return nil, err
	}

	file.hash = hash

	return file, nil
}

// Open opens an existing tails file and validates its header against the
// file size. The hash is not recomputed; use VerifyHash when the expected
// hash is known.
func Open(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "open tails file: %w", err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close() //nolint:errcheck,gosec

		return nil, anoncreds.NewErrorf(anoncreds.IOError, "read tails header: %w", err)
	}

	capacity, count, err := parseHeader(header)
	if err != nil {
		f.Close() //nolint:errcheck,gosec

		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck,gosec

		return nil, anoncreds.NewErrorf(anoncreds.IOError, "stat tails file: %w", err)
	}

	if info.Size() != int64(headerSize)+int64(count)*entrySize {
		f.Close() //nolint:errcheck,gosec

		return nil, anoncreds.NewErrorf(anoncreds.IOError, "tails file %s is truncated", path)
	}

	return &File{f: f, path: path, capacity: capacity, count: count}, nil
}

func marshalHeader(capacity, count uint32) []byte {
	header := make([]byte, headerSize)

	copy(header, magic)
	binary.BigEndian.PutUint16(header[4:], formatVersion)
	binary.BigEndian.PutUint32(header[8:], capacity)
	binary.BigEndian.PutUint32(header[12:], count)

	return header
}

func parseHeader(header []byte) (capacity, count uint32, err error) {
	if !bytes.Equal(header[:len(magic)], magic) {
		return 0, 0, anoncreds.NewError(anoncreds.IOError, "not a tails file")
	}

	if v := binary.BigEndian.Uint16(header[4:]); v != formatVersion {
		return 0, 0, anoncreds.NewErrorf(anoncreds.IOError, "unsupported tails format version %d", v)
	}

	capacity = binary.BigEndian.Uint32(header[8:])
	count = binary.BigEndian.Uint32(header[12:])

	if capacity == 0 || count != 2*capacity {
		return 0, 0, anoncreds.NewError(anoncreds.IOError, "tails header is corrupt")
	}

	return capacity, count, nil
}

// Entry reads one tails entry by index.
func (t *File) Entry(index uint32) (*api.TailsEntry, error) {
	if err := t.checkIndex(index); err != nil {
		return nil, err
	}

	buf := make([]byte, entrySize)

	if _, err := t.f.ReadAt(buf, entryOffset(index)); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "read tails entry %d: %w", index, err)
	}

	return &api.TailsEntry{G1: buf[:g1PointSize], G2: buf[g1PointSize:]}, nil
}

func (t *File) checkIndex(index uint32) error {
	if index == 0 || index > t.count {
		return anoncreds.NewErrorf(anoncreds.Input, "tails index %d out of range [1, %d]", index, t.count)
	}

	if index == t.capacity+1 {
		return anoncreds.NewErrorf(anoncreds.Input, "tails index %d is reserved", index)
	}

	return nil
}

func entryOffset(index uint32) int64 {
	return int64(headerSize) + int64(index-1)*entrySize
}

// Capacity returns the registry capacity the file was generated for.
func (t *File) Capacity() uint32 {
	return t.capacity
}

// Count returns the number of entry slots, twice the capacity.
func (t *File) Count() uint32 {
	return t.count
}

// Path returns the location of the file on disk.
func (t *File) Path() string {
	return t.path
}

// Hash returns the base58 tails hash when known: files produced by Create
// and Fetch know their hash, files opened from disk do not until VerifyHash
// has run.
func (t *File) Hash() string {
	return t.hash
}

// VerifyHash recomputes the file hash and compares it to the expected value.
func (t *File) VerifyHash(expected string) error {
	hasher := sha256.New()

	if _, err := t.f.Seek(0, io.SeekStart); err != nil {
		return anoncreds.NewErrorf(anoncreds.IOError, "rewind tails file: %w", err)
	}

	if _, err := io.Copy(hasher, t.f); err != nil {
		return anoncreds.NewErrorf(anoncreds.IOError, "hash tails file: %w", err)
	}

	hash := base58.Encode(hasher.Sum(nil))
	if hash != expected {
		return anoncreds.NewErrorf(anoncreds.IOError, "tails file hash %s does not match %s", hash, expected)
	}

	t.hash = hash

	return nil
}

// Close releases the underlying file.
func (t *File) Close() error {
	if err := t.f.Close(); err != nil {
		return fmt.Errorf("close tails file: %w", err)
	}

	return nil
}
