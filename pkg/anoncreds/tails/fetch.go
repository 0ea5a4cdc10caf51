/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package tails

import (
	"crypto/sha256"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/cenkalti/backoff/v4"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

const (
	fetchMaxRetries      = 3
	fetchBackOffInterval = time.Second
)

// Fetch downloads a remote tails file into dir, retrying transient failures,
// and verifies the download against the expected base58 hash before moving
// it to its content-addressed location. A nil client uses the default one.
func Fetch(client *http.Client, url, dir, expectedHash string) (*File, error) {
	if client == nil {
		client = http.DefaultClient
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

	hasher := sha256.New()

	err = backoff.Retry(func() error {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return backoff.Permanent(err)
		}

		if err := tmp.Truncate(0); err != nil {
			return backoff.Permanent(err)
		}

		hasher.Reset()

		return download(client, url, io.MultiWriter(tmp, hasher))
	}, backoff.WithMaxRetries(backoff.NewConstantBackOff(fetchBackOffInterval), fetchMaxRetries))
	if err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "fetch tails file %s: %w", url, err)
	}

	hash := base58.Encode(hasher.Sum(nil))
	if expectedHash != "" && hash != expectedHash {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "tails file from %s has hash %s, expected %s",
			url, hash, expectedHash)
	}

	if err := tmp.Close(); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "close tails file: %w", err)
	}

	path := filepath.Join(dir, hash)

	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, anoncreds.NewErrorf(anoncreds.IOError, "finalize tails file: %w", err)
	}

	tmp = nil

	logger.Debugf("fetched tails file %s from %s", path, url)

	file, err := Open(path)
	if err != nil {
		return nil, err
	}

	file.hash = hash

	return file, nil
}

func download(client *http.Client, url string, dst io.Writer) error {
	resp, err := client.Get(url) //nolint:noctx
	if err != nil {
		return err
	}

	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := anoncreds.NewErrorf(anoncreds.IOError, "unexpected status %s", resp.Status)

		// Client errors will not heal on retry.
		if resp.StatusCode < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}

		return err
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return err
	}

	return nil
}
