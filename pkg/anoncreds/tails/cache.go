/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tails

import (
	"github.com/bluele/gcache"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

const (
	blockEntries      = 64
	defaultBlockCount = 32
)

// CachedReader serves tails entries through an LRU cache of fixed-size entry
// blocks, cutting file reads during witness computation from one per index
// to one per block. The underlying gcache is thread safe, no locks needed.
type CachedReader struct {
	file   *File
	blocks gcache.Cache
}

// NewCachedReader wraps file with a cache holding up to blockCount blocks.
// A non-positive blockCount selects the default size.
func NewCachedReader(file *File, blockCount int) *CachedReader {
	if blockCount <= 0 {
		blockCount = defaultBlockCount
	}

	return &CachedReader{
		file:   file,
		blocks: gcache.New(blockCount).LRU().Build(),
	}
}

// Entry reads one tails entry by index, loading its block on a cache miss.
func (r *CachedReader) Entry(index uint32) (*api.TailsEntry, error) {
	if err := r.file.checkIndex(index); err != nil {
		return nil, err
	}

	blockIdx := (index - 1) / blockEntries

	block, err := r.block(blockIdx)
	if err != nil {
		return nil, err
	}

	offset := int((index - 1) % blockEntries * entrySize)
	entry := block[offset : offset+entrySize]

	return &api.TailsEntry{G1: entry[:g1PointSize], G2: entry[g1PointSize:]}, nil
}

func (r *CachedReader) block(blockIdx uint32) ([]byte, error) {
	if cached, err := r.blocks.Get(blockIdx); err == nil {
		return cached.([]byte), nil
	}

	first := blockIdx * blockEntries
	entries := r.file.count - first

	if entries > blockEntries {
		entries = blockEntries
	}

	block := make([]byte, int(entries)*entrySize)

	if _, err := r.file.f.ReadAt(block, entryOffset(first+1)); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "read tails block %d: %w", blockIdx, err)
	}

	if err := r.blocks.Set(blockIdx, block); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.Unexpected, "cache tails block %d: %w", blockIdx, err)
	}

	return block, nil
}
