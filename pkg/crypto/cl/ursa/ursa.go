//go:build ursa
// +build ursa

/*
Copyright Avast Software. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ursa backs the credential engine with libursa's CL signature
// scheme through the CGo wrapper. It covers the issuance half of the
// capability surface: key generation, link-secret blinding, signing and
// blinding-factor removal. Key material and signatures produced by this
// backend are libursa JSON documents and are not interchangeable with the
// default backend's.
package ursa

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hyperledger/ursa-wrapper-go/pkg/libursa/ursa"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/crypto/cl/api"
)

// signatureEnvelope carries the CL signature together with its correctness
// proof as one opaque document, since both travel to the holder and both are
// consumed again when the blinding factor is removed.
type signatureEnvelope struct {
	Signature        json.RawMessage `json:"signature"`
	CorrectnessProof json.RawMessage `json:"signature_correctness_proof"`
}

// Signer is the issuer-side CL primitive over libursa.
type Signer struct{}

// NewSigner returns a libursa-backed signer.
func NewSigner() *Signer {
	return &Signer{}
}

// CreateCredentialKeys generates a CL credential definition key triple for
// the given attribute names.
func (s *Signer) CreateCredentialKeys(attrNames []string, supportRevocation bool) (*api.CredentialKeys, error) {
	schema, nonSchema, err := buildSchema(attrNames)
	if err != nil {
		return nil, err
	}

	defer schema.Free()    // nolint: errcheck
	defer nonSchema.Free() // nolint: errcheck

	credDef, err := ursa.NewCredentialDef(schema, nonSchema, supportRevocation)
	if err != nil {
		return nil, fmt.Errorf("ursa: new credential definition: %w", err)
	}

	defer credDef.PubKey.Free()              // nolint: errcheck
	defer credDef.PrivKey.Free()             // nolint: errcheck
	defer credDef.KeyCorrectnessProof.Free() // nolint: errcheck

	pub, err := credDef.PubKey.ToJSON()
	if err != nil {
		return nil, err
	}

	priv, err := credDef.PrivKey.ToJSON()
	if err != nil {
		return nil, err
	}

	proof, err := credDef.KeyCorrectnessProof.ToJSON()
	if err != nil {
		return nil, err
	}

	return &api.CredentialKeys{Public: pub, Private: priv, CorrectnessProof: proof}, nil
}

// VerifyBlindedSecret checks the shape of the holder's blinded secret
// material. The correctness proof itself is verified by libursa while
// signing, bound to the offer nonce supplied there.
func (s *Signer) VerifyBlindedSecret(pub, blinded, proof json.RawMessage, offerNonce string) error {
	_blinded, err := ursa.BlindedCredentialSecretsFromJSON(blinded)
	if err != nil {
		return fmt.Errorf("ursa: invalid blinded secrets json: %w", err)
	}

	defer _blinded.Free() // nolint: errcheck

	_proof, err := ursa.BlindedCredentialSecretsCorrectnessProofFromJSON(proof)
	if err != nil {
		return fmt.Errorf("ursa: invalid blinded secrets correctness proof json: %w", err)
	}

	defer _proof.Free() // nolint: errcheck

	return nil
}

// SignCredential signs the encoded values over the blinded link secret. The
// offer and request nonces are mandatory here: libursa folds them into the
// signature correctness proof.
func (s *Signer) SignCredential(req *api.SignRequest) (json.RawMessage, error) {
	if req.OfferNonce == "" || req.RequestNonce == "" {
		return nil, fmt.Errorf("ursa: both offer and request nonces are required")
	}

	_pub, err := ursa.CredentialPublicKeyFromJSON(req.Public)
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid credential public key json: %w", err)
	}

	defer _pub.Free() // nolint: errcheck

	_priv, err := ursa.CredentialPrivateKeyFromJSON(req.Private)
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid credential private key json: %w", err)
	}

	defer _priv.Free() // nolint: errcheck

	_blinded, err := ursa.BlindedCredentialSecretsFromJSON(req.BlindedSecret)
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid blinded secrets json: %w", err)
	}

	defer _blinded.Free() // nolint: errcheck

	_blindedProof, err := ursa.BlindedCredentialSecretsCorrectnessProofFromJSON(req.BlindedProof)
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid blinded secrets correctness proof json: %w", err)
	}

	defer _blindedProof.Free() // nolint: errcheck

	_offerNonce, err := nonceFromDec(req.OfferNonce)
	if err != nil {
		return nil, err
	}

	defer _offerNonce.Free() // nolint: errcheck

	_requestNonce, err := nonceFromDec(req.RequestNonce)
	if err != nil {
		return nil, err
	}

	defer _requestNonce.Free() // nolint: errcheck

	_values, err := buildValues(req.Values, nil)
	if err != nil {
		return nil, err
	}

	defer _values.Free() // nolint: errcheck

	signParams := ursa.NewSignatureParams()
	signParams.CredentialPubKey = _pub
	signParams.CredentialPrivKey = _priv
	signParams.BlindedCredentialSecrets = _blinded
	signParams.BlindedCredentialSecretsCorrectnessProof = _blindedProof
	signParams.CredentialNonce = _offerNonce
	signParams.CredentialValues = _values
	signParams.CredentialIssuanceNonce = _requestNonce

	_signature, _sigProof, err := signParams.SignCredential()
	if err != nil {
		return nil, fmt.Errorf("ursa: sign credential: %w", err)
	}

	defer _signature.Free() // nolint: errcheck
	defer _sigProof.Free()  // nolint: errcheck

	signature, err := _signature.ToJSON()
	if err != nil {
		return nil, err
	}

	sigProof, err := _sigProof.ToJSON()
	if err != nil {
		return nil, err
	}

	return json.Marshal(&signatureEnvelope{Signature: signature, CorrectnessProof: sigProof})
}

// Blinder is the holder-side CL primitive over libursa.
type Blinder struct{}

// NewBlinder returns a libursa-backed blinder.
func NewBlinder() *Blinder {
	return &Blinder{}
}

// CreateMasterSecret generates a fresh link secret.
func (b *Blinder) CreateMasterSecret() (json.RawMessage, error) {
	ms, err := ursa.NewMasterSecret()
	if err != nil {
		return nil, fmt.Errorf("ursa: new master secret: %w", err)
	}

	defer ms.Free() // nolint: errcheck

	return ms.ToJSON()
}

// VerifyKeyCorrectnessProof checks the shape of the issuer's key material.
// libursa verifies the proof itself when the link secret is blinded against
// it.
func (b *Blinder) VerifyKeyCorrectnessProof(pub, proof json.RawMessage, attrNames []string) error {
	_pub, err := ursa.CredentialPublicKeyFromJSON(pub)
	if err != nil {
		return fmt.Errorf("ursa: invalid credential public key json: %w", err)
	}

	defer _pub.Free() // nolint: errcheck

	_proof, err := ursa.CredentialKeyCorrectnessProofFromJSON(proof)
	if err != nil {
		return fmt.Errorf("ursa: invalid key correctness proof json: %w", err)
	}

	defer _proof.Free() // nolint: errcheck

	return nil
}

// BlindMasterSecret blinds the link secret toward the issuer's public key,
// bound to the offer nonce.
func (b *Blinder) BlindMasterSecret(pub, keyProof, masterSecret json.RawMessage, offerNonce string) (*api.BlindedSecret, error) {
	_pub, err := ursa.CredentialPublicKeyFromJSON(pub)
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid credential public key json: %w", err)
	}

	defer _pub.Free() // nolint: errcheck

	msStr, err := masterSecretString(masterSecret)
	if err != nil {
		return nil, err
	}

	_values, err := buildValues(nil, &msStr)
	if err != nil {
		return nil, err
	}

	defer _values.Free() // nolint: errcheck

	_nonce, err := nonceFromDec(offerNonce)
	if err != nil {
		return nil, err
	}

	defer _nonce.Free() // nolint: errcheck

	proof, err := ursa.CredentialKeyCorrectnessProofFromJSON(keyProof)
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid key correctness proof json: %w", err)
	}

	defer proof.Free() // nolint: errcheck

	blinded, err := ursa.BlindCredentialSecrets(_pub, proof, _nonce, _values)
	if err != nil {
		return nil, fmt.Errorf("ursa: blind credential secrets: %w", err)
	}

	defer blinded.Handle.Free()           // nolint: errcheck
	defer blinded.CorrectnessProof.Free() // nolint: errcheck
	defer blinded.BlindingFactor.Free()   // nolint: errcheck

	blindedJSON, err := blinded.Handle.ToJSON()
	if err != nil {
		return nil, err
	}

	proofJSON, err := blinded.CorrectnessProof.ToJSON()
	if err != nil {
		return nil, err
	}

	factorJSON, err := blinded.BlindingFactor.ToJSON()
	if err != nil {
		return nil, err
	}

	return &api.BlindedSecret{
		Blinded:          blindedJSON,
		CorrectnessProof: proofJSON,
		BlindingData:     factorJSON,
	}, nil
}

// ProcessSignature removes the issuer's blinding from a received signature
// and verifies the signature correctness proof against the request nonce.
func (b *Blinder) ProcessSignature(req *api.ProcessRequest) (json.RawMessage, error) {
	envelope := &signatureEnvelope{}
	if err := json.Unmarshal(req.Signature, envelope); err != nil {
		return nil, fmt.Errorf("ursa: invalid signature envelope: %w", err)
	}

	_signature, err := ursa.CredentialSignatureFromJSON(envelope.Signature)
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid credential signature json: %w", err)
	}

	defer _signature.Free() // nolint: errcheck

	_sigProof, err := ursa.CredentialSignatureCorrectnessProofFromJSON(envelope.CorrectnessProof)
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid signature correctness proof json: %w", err)
	}

	defer _sigProof.Free() // nolint: errcheck

	_factor, err := ursa.CredentialSecretsBlindingFactorFromJSON(req.BlindingData)
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid blinding factor json: %w", err)
	}

	defer _factor.Free() // nolint: errcheck

	_pub, err := ursa.CredentialPublicKeyFromJSON(req.Public)
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid credential public key json: %w", err)
	}

	defer _pub.Free() // nolint: errcheck

	_nonce, err := nonceFromDec(req.RequestNonce)
	if err != nil {
		return nil, err
	}

	defer _nonce.Free() // nolint: errcheck

	msStr, err := masterSecretString(req.MasterSecret)
	if err != nil {
		return nil, err
	}

	_values, err := buildValues(req.Values, &msStr)
	if err != nil {
		return nil, err
	}

	defer _values.Free() // nolint: errcheck

	err = _signature.ProcessCredentialSignature(_values, _sigProof, _factor, _pub, _nonce)
	if err != nil {
		return nil, fmt.Errorf("ursa: process credential signature: %w", err)
	}

	processed, err := _signature.ToJSON()
	if err != nil {
		return nil, err
	}

	return json.Marshal(&signatureEnvelope{Signature: processed, CorrectnessProof: envelope.CorrectnessProof})
}

func buildSchema(attrs []string) (*ursa.CredentialSchemaHandle, *ursa.NonCredentialSchemaHandle, error) {
	schemaBuilder, err := ursa.NewCredentialSchemaBuilder()
	if err != nil {
		return nil, nil, err
	}

	for _, attr := range attrs {
		if err = schemaBuilder.AddAttr(attr); err != nil {
			return nil, nil, err
		}
	}

	schema, err := schemaBuilder.Finalize()
	if err != nil {
		return nil, nil, err
	}

	nonSchemaBuilder, err := ursa.NewNonCredentialSchemaBuilder()
	if err != nil {
		return nil, nil, err
	}

	if err = nonSchemaBuilder.AddAttr("master_secret"); err != nil {
		return nil, nil, err
	}

	nonSchema, err := nonSchemaBuilder.Finalize()
	if err != nil {
		return nil, nil, err
	}

	return schema, nonSchema, nil
}

func buildValues(values map[string]string, masterSecretStr *string) (*ursa.CredentialValues, error) {
	valuesBuilder, err := ursa.NewValueBuilder()
	if err != nil {
		return nil, err
	}

	if masterSecretStr != nil {
		if err = valuesBuilder.AddDecHidden("master_secret", *masterSecretStr); err != nil {
			return nil, err
		}
	}

	for name, encoded := range values {
		if err = valuesBuilder.AddDecKnown(name, encoded); err != nil {
			return nil, err
		}
	}

	return valuesBuilder.Finalize()
}

func masterSecretString(masterSecret json.RawMessage) (string, error) {
	m := struct {
		MS string `json:"ms"`
	}{}

	if err := json.Unmarshal(masterSecret, &m); err != nil {
		return "", fmt.Errorf("ursa: invalid master secret json: %w", err)
	}

	return m.MS, nil
}

func nonceFromDec(dec string) (*ursa.Nonce, error) {
	nonce, err := ursa.NonceFromJSON(strconv.Quote(dec))
	if err != nil {
		return nil, fmt.Errorf("ursa: invalid nonce %q: %w", dec, err)
	}

	return nonce, nil
}
