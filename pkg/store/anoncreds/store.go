/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package anoncreds provides storage for holder-side anonymous credential
// material: processed credentials, master secrets and revocation states.
package anoncreds

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
)

const (
	// NameSpace for the anoncreds store.
	NameSpace = "anoncreds"

	credentialKey          = "cred_"
	credentialKeyPattern   = credentialKey + "%s"
	masterSecretKey        = "ms_"
	masterSecretKeyPattern = masterSecretKey + "%s"
	revStateKey            = "revstate_"
	revStateKeyPattern     = revStateKey + "%s"

	credentialTagName   = "credential"
	masterSecretTagName = "mastersecret"
	revStateTagName     = "revstate"
	schemaIDTagName     = "schemaid"
	credDefIDTagName    = "creddefid"
	revRegIDTagName     = "revregid"
	stateRegIDTagName   = "revstateregid"
)

var logger = log.New("anoncreds/store")

// ErrNotFound signals that the record is not present in the store.
var ErrNotFound = errors.New("record not found")

// CredentialRecord describes a stored credential.
type CredentialRecord struct {
	ID        string `json:"id"`
	SchemaID  string `json:"schema_id"`
	CredDefID string `json:"cred_def_id"`
	RevRegID  string `json:"rev_reg_id,omitempty"`
}

// RevocationStateRecord describes a stored revocation state.
type RevocationStateRecord struct {
	ID        string `json:"id"`
	RevRegID  string `json:"rev_reg_id"`
	Timestamp uint64 `json:"timestamp"`
}

// revocationStateData wraps a revocation state with the registry it belongs
// to, which the state document itself does not carry.
type revocationStateData struct {
	RevRegID string                     `json:"rev_reg_id"`
	State    *anoncreds.RevocationState `json:"state"`
}

// Store stores anonymous credential material.
type Store struct {
	store storage.Store
}

type provider interface {
	StorageProvider() storage.Provider
}

// New returns a new anoncreds store.
func New(ctx provider) (*Store, error) {
	store, err := ctx.StorageProvider().OpenStore(NameSpace)
	if err != nil {
		return nil, fmt.Errorf("failed to open anoncreds store: %w", err)
	}

	err = ctx.StorageProvider().SetStoreConfig(NameSpace, storage.StoreConfiguration{
		TagNames: []string{
			credentialTagName, masterSecretTagName, revStateTagName,
			schemaIDTagName, credDefIDTagName, revRegIDTagName, stateRegIDTagName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set store configuration: %w", err)
	}

	return &Store{store: store}, nil
}

// SaveCredential stores a processed credential and returns the record id.
// A fresh id is generated when the given one is empty; an explicit id must
// not collide with an existing record.
func (s *Store) SaveCredential(id string, cred *anoncreds.Credential) (string, error) {
	if cred == nil {
		return "", errors.New("credential is mandatory")
	}

	if id == "" {
		id = uuid.New().String()
	} else {
		_, err := s.store.Get(credentialDataKey(id))
		if err == nil {
			return "", fmt.Errorf("credential %q already exists", id)
		}

		if !errors.Is(err, storage.ErrDataNotFound) {
			return "", fmt.Errorf("check for existing credential: %w", err)
		}
	}

	raw, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credential: %w", err)
	}

	tags := []storage.Tag{
		{Name: credentialTagName},
		{Name: schemaIDTagName, Value: tagValue(cred.SchemaID)},
		{Name: credDefIDTagName, Value: tagValue(cred.CredDefID)},
	}

	if cred.RevRegID != "" {
		tags = append(tags, storage.Tag{Name: revRegIDTagName, Value: tagValue(cred.RevRegID)})
	}

	if err := s.store.Put(credentialDataKey(id), raw, tags...); err != nil {
		return "", fmt.Errorf("failed to put credential: %w", err)
	}

	return id, nil
}

// GetCredential retrieves the credential stored under id.
func (s *Store) GetCredential(id string) (*anoncreds.Credential, error) {
	raw, err := s.store.Get(credentialDataKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	cred, err := anoncreds.ParseCredential(raw)
	if err != nil {
		return nil, fmt.Errorf("parse stored credential: %w", err)
	}

	return cred, nil
}

// DeleteCredential removes the credential stored under id.
func (s *Store) DeleteCredential(id string) error {
	if err := s.store.Delete(credentialDataKey(id)); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	return nil
}

// GetCredentialRecords retrieves the records of all stored credentials.
func (s *Store) GetCredentialRecords() ([]*CredentialRecord, error) {
	return s.queryCredentials(credentialTagName)
}

// GetCredentialsBySchemaID retrieves the records of the credentials issued
// against the given schema.
func (s *Store) GetCredentialsBySchemaID(schemaID string) ([]*CredentialRecord, error) {
	return s.queryCredentials(schemaIDTagName + ":" + tagValue(schemaID))
}

// GetCredentialsByCredDefID retrieves the records of the credentials issued
// against the given credential definition.
func (s *Store) GetCredentialsByCredDefID(credDefID string) ([]*CredentialRecord, error) {
	return s.queryCredentials(credDefIDTagName + ":" + tagValue(credDefID))
}

// GetCredentialsByRevRegID retrieves the records of the credentials tracked
// by the given revocation registry.
func (s *Store) GetCredentialsByRevRegID(revRegID string) ([]*CredentialRecord, error) {
	return s.queryCredentials(revRegIDTagName + ":" + tagValue(revRegID))
}

func (s *Store) queryCredentials(expression string) ([]*CredentialRecord, error) {
	itr, err := s.store.Query(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to query credential records: %w", err)
	}

	defer func() {
		errClose := itr.Close()
		if errClose != nil {
			logger.Errorf("failed to close iterator: %s", errClose.Error())
		}
	}()

	var records []*CredentialRecord

	more, err := itr.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to get next record: %w", err)
	}

	for more {
		key, err := itr.Key()
		if err != nil {
			return nil, fmt.Errorf("failed to get record key: %w", err)
		}

		value, err := itr.Value()
		if err != nil {
			return nil, fmt.Errorf("failed to get record value: %w", err)
		}

		cred := &anoncreds.Credential{}
		if err := json.Unmarshal(value, cred); err != nil {
			return nil, fmt.Errorf("unmarshal stored credential: %w", err)
		}

		records = append(records, &CredentialRecord{
			ID:        key[len(credentialKey):],
			SchemaID:  cred.SchemaID,
			CredDefID: cred.CredDefID,
			RevRegID:  cred.RevRegID,
		})

		more, err = itr.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next record: %w", err)
		}
	}

	return records, nil
}

// SaveMasterSecret stores a master secret under name. Master secrets are
// immutable: saving over an existing name fails rather than silently
// unlinking every credential bound to the old secret.
func (s *Store) SaveMasterSecret(name string, secret *anoncreds.MasterSecret) error {
	if name == "" {
		return errors.New("master secret name is mandatory")
	}

	if secret == nil {
		return errors.New("master secret is mandatory")
	}

	_, err := s.store.Get(masterSecretDataKey(name))
	if err == nil {
		return fmt.Errorf("master secret %q already exists", name)
	}

	if !errors.Is(err, storage.ErrDataNotFound) {
		return fmt.Errorf("check for existing master secret: %w", err)
	}

	raw, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("failed to marshal master secret: %w", err)
	}

	if err := s.store.Put(masterSecretDataKey(name), raw, storage.Tag{Name: masterSecretTagName}); err != nil {
		return fmt.Errorf("failed to put master secret: %w", err)
	}

	return nil
}

// GetMasterSecret retrieves the master secret stored under name.
func (s *Store) GetMasterSecret(name string) (*anoncreds.MasterSecret, error) {
	raw, err := s.store.Get(masterSecretDataKey(name))
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to get master secret: %w", err)
	}

	secret, err := anoncreds.ParseMasterSecret(raw)
	if err != nil {
		return nil, fmt.Errorf("parse stored master secret: %w", err)
	}

	return secret, nil
}

// GetMasterSecretNames retrieves the names of all stored master secrets.
func (s *Store) GetMasterSecretNames() ([]string, error) {
	itr, err := s.store.Query(masterSecretTagName)
	if err != nil {
		return nil, fmt.Errorf("failed to query master secrets: %w", err)
	}

	defer func() {
		errClose := itr.Close()
		if errClose != nil {
			logger.Errorf("failed to close iterator: %s", errClose.Error())
		}
	}()

	var names []string

	more, err := itr.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to get next record: %w", err)
	}

	for more {
		key, err := itr.Key()
		if err != nil {
			return nil, fmt.Errorf("failed to get record key: %w", err)
		}

		names = append(names, key[len(masterSecretKey):])

		more, err = itr.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next record: %w", err)
		}
	}

	return names, nil
}

// SaveRevocationState stores the revocation state a credential holds within
// the given registry and returns the record id. A fresh id is generated when
// the given one is empty; saving under an existing id replaces the state, as
// states are refreshed whenever the registry moves.
func (s *Store) SaveRevocationState(id, revRegID string, state *anoncreds.RevocationState) (string, error) {
	if revRegID == "" {
		return "", errors.New("revocation registry id is mandatory")
	}

	if state == nil {
		return "", errors.New("revocation state is mandatory")
	}

	if id == "" {
		id = uuid.New().String()
	}

	raw, err := json.Marshal(&revocationStateData{RevRegID: revRegID, State: state})
	if err != nil {
		return "", fmt.Errorf("failed to marshal revocation state: %w", err)
	}

	tags := []storage.Tag{
		{Name: revStateTagName},
		{Name: stateRegIDTagName, Value: tagValue(revRegID)},
	}

	if err := s.store.Put(revStateDataKey(id), raw, tags...); err != nil {
		return "", fmt.Errorf("failed to put revocation state: %w", err)
	}

	return id, nil
}

// GetRevocationState retrieves the revocation state stored under id.
func (s *Store) GetRevocationState(id string) (*anoncreds.RevocationState, error) {
	raw, err := s.store.Get(revStateDataKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to get revocation state: %w", err)
	}

	data := &revocationStateData{}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("unmarshal stored revocation state: %w", err)
	}

	return data.State, nil
}

// DeleteRevocationState removes the revocation state stored under id.
func (s *Store) DeleteRevocationState(id string) error {
	if err := s.store.Delete(revStateDataKey(id)); err != nil {
		return fmt.Errorf("failed to delete revocation state: %w", err)
	}

	return nil
}

// GetRevocationStatesByRevRegID retrieves the records of the revocation
// states held within the given registry.
func (s *Store) GetRevocationStatesByRevRegID(revRegID string) ([]*RevocationStateRecord, error) {
	itr, err := s.store.Query(stateRegIDTagName + ":" + tagValue(revRegID))
	if err != nil {
		return nil, fmt.Errorf("failed to query revocation states: %w", err)
	}

	defer func() {
		errClose := itr.Close()
		if errClose != nil {
			logger.Errorf("failed to close iterator: %s", errClose.Error())
		}
	}()

	var records []*RevocationStateRecord

	more, err := itr.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to get next record: %w", err)
	}

	for more {
		key, err := itr.Key()
		if err != nil {
			return nil, fmt.Errorf("failed to get record key: %w", err)
		}

		value, err := itr.Value()
		if err != nil {
			return nil, fmt.Errorf("failed to get record value: %w", err)
		}

		data := &revocationStateData{}
		if err := json.Unmarshal(value, data); err != nil {
			return nil, fmt.Errorf("unmarshal stored revocation state: %w", err)
		}

		record := &RevocationStateRecord{
			ID:       key[len(revStateKey):],
			RevRegID: data.RevRegID,
		}

		if data.State != nil {
			record.Timestamp = data.State.Timestamp
		}

		records = append(records, record)

		more, err = itr.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next record: %w", err)
		}
	}

	return records, nil
}

func credentialDataKey(id string) string {
	return fmt.Sprintf(credentialKeyPattern, id)
}

func masterSecretDataKey(name string) string {
	return fmt.Sprintf(masterSecretKeyPattern, name)
}

func revStateDataKey(id string) string {
	return fmt.Sprintf(revStateKeyPattern, id)
}

// tagValue makes an identifier safe for use as a storage tag value, which
// must not contain ':' characters.
func tagValue(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}
