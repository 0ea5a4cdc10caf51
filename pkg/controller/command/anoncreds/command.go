/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package anoncreds provides controller commands over the anonymous
// credential engine: issuing, holding, presenting and revoking.
package anoncreds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/holder"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/issuer"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/revocation"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/tails"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/anoncreds/verifier"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/controller/command"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/controller/internal/cmdutil"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/doc/anoncreds"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/internal/logutil"
	anoncredsstore "github.com/andrewwhitehead/anoncreds-rs/pkg/store/anoncreds"
)

var logger = log.New("anoncreds/command")

// Error codes.
const (
	// InvalidRequestErrorCode is typically a code for invalid requests.
	InvalidRequestErrorCode = command.Code(iota + command.Anoncreds)

	// CreateSchemaErrorCode for create schema error.
	CreateSchemaErrorCode

	// CreateCredentialDefinitionErrorCode for create credential definition error.
	CreateCredentialDefinitionErrorCode

	// CreateCredentialOfferErrorCode for create credential offer error.
	CreateCredentialOfferErrorCode

	// CreateMasterSecretErrorCode for create master secret error.
	CreateMasterSecretErrorCode

	// CreateCredentialRequestErrorCode for create credential request error.
	CreateCredentialRequestErrorCode

	// CreateCredentialErrorCode for create credential error.
	CreateCredentialErrorCode

	// ProcessCredentialErrorCode for process credential error.
	ProcessCredentialErrorCode

	// GetCredentialErrorCode for get credential error.
	GetCredentialErrorCode

	// GetCredentialsErrorCode for get credentials error.
	GetCredentialsErrorCode

	// RemoveCredentialErrorCode for remove credential error.
	RemoveCredentialErrorCode

	// CreatePresentationErrorCode for create presentation error.
	CreatePresentationErrorCode

	// VerifyPresentationErrorCode for verify presentation error.
	VerifyPresentationErrorCode

	// CreateRevocationRegistryErrorCode for create revocation registry error.
	CreateRevocationRegistryErrorCode

	// UpdateRevocationRegistryErrorCode for update revocation registry error.
	UpdateRevocationRegistryErrorCode

	// RevokeCredentialErrorCode for revoke credential error.
	RevokeCredentialErrorCode

	// CreateRevocationStateErrorCode for create revocation state error.
	CreateRevocationStateErrorCode
)

const (
	// command name.
	commandName = "anoncreds"

	// command methods.
	createSchemaCommandMethod               = "CreateSchema"
	createCredentialDefinitionCommandMethod = "CreateCredentialDefinition"
	createCredentialOfferCommandMethod      = "CreateCredentialOffer"
	createMasterSecretCommandMethod         = "CreateMasterSecret"
	createCredentialRequestCommandMethod    = "CreateCredentialRequest"
	createCredentialCommandMethod           = "CreateCredential"
	processCredentialCommandMethod          = "ProcessCredential"
	getCredentialCommandMethod              = "GetCredential"
	getCredentialsCommandMethod             = "GetCredentials"
	removeCredentialCommandMethod           = "RemoveCredential"
	createPresentationCommandMethod         = "CreatePresentation"
	verifyPresentationCommandMethod         = "VerifyPresentation"
	createRevocationRegistryCommandMethod   = "CreateRevocationRegistry"
	updateRevocationRegistryCommandMethod   = "UpdateRevocationRegistry"
	revokeCredentialCommandMethod           = "RevokeCredential"
	createRevocationStateCommandMethod      = "CreateRevocationState"

	// error messages.
	errEmptyCredentialID  = "credential record id is mandatory"
	errEmptyMasterSecret  = "master secret name is mandatory"
	errMultipleFilters    = "at most one of schema_id, cred_def_id and rev_reg_id may be set"
	errNoCredentialSource = "either credential or credential_id must be set"
	errEmptyTailsLocation = "tails location is mandatory"
	errUnknownRevRegistry = "revocation entry references an unknown registry id"
	errEmptyCredentialRow = "credentials contains an empty entry"
	errEmptyProveRow      = "proves contains an empty entry"

	// log constants.
	credentialID = "credentialID"
	secretName   = "masterSecretName"
)

// provider contains the dependencies of the anoncreds command.
type provider interface {
	StorageProvider() storage.Provider
	TailsDir() string
}

// Command contains command operations over the anonymous credential engine.
type Command struct {
	issuer   *issuer.Issuer
	holder   *holder.Holder
	verifier *verifier.Verifier
	registry *revocation.Engine
	store    *anoncredsstore.Store
	tailsDir string
}

// New returns a new anoncreds controller command instance.
func New(ctx provider) (*Command, error) {
	store, err := anoncredsstore.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("new anoncreds store : %w", err)
	}

	return &Command{
		issuer:   issuer.New(),
		holder:   holder.New(),
		verifier: verifier.New(),
		registry: revocation.New(),
		store:    store,
		tailsDir: ctx.TailsDir(),
	}, nil
}

// GetHandlers returns list of all commands supported by this controller command.
func (o *Command) GetHandlers() []command.Handler {
	return []command.Handler{
		cmdutil.NewCommandHandler(commandName, createSchemaCommandMethod, o.CreateSchema),
		cmdutil.NewCommandHandler(commandName, createCredentialDefinitionCommandMethod, o.CreateCredentialDefinition),
		cmdutil.NewCommandHandler(commandName, createCredentialOfferCommandMethod, o.CreateCredentialOffer),
		cmdutil.NewCommandHandler(commandName, createMasterSecretCommandMethod, o.CreateMasterSecret),
		cmdutil.NewCommandHandler(commandName, createCredentialRequestCommandMethod, o.CreateCredentialRequest),
		cmdutil.NewCommandHandler(commandName, createCredentialCommandMethod, o.CreateCredential),
		cmdutil.NewCommandHandler(commandName, processCredentialCommandMethod, o.ProcessCredential),
		cmdutil.NewCommandHandler(commandName, getCredentialCommandMethod, o.GetCredential),
		cmdutil.NewCommandHandler(commandName, getCredentialsCommandMethod, o.GetCredentials),
		cmdutil.NewCommandHandler(commandName, removeCredentialCommandMethod, o.RemoveCredential),
		cmdutil.NewCommandHandler(commandName, createPresentationCommandMethod, o.CreatePresentation),
		cmdutil.NewCommandHandler(commandName, verifyPresentationCommandMethod, o.VerifyPresentation),
		cmdutil.NewCommandHandler(commandName, createRevocationRegistryCommandMethod, o.CreateRevocationRegistry),
		cmdutil.NewCommandHandler(commandName, updateRevocationRegistryCommandMethod, o.UpdateRevocationRegistry),
		cmdutil.NewCommandHandler(commandName, revokeCredentialCommandMethod, o.RevokeCredential),
		cmdutil.NewCommandHandler(commandName, createRevocationStateCommandMethod, o.CreateRevocationState),
	}
}

// CreateSchema creates a credential schema.
func (o *Command) CreateSchema(rw io.Writer, req io.Reader) command.Error {
	request := &CreateSchemaArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, createSchemaCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	schema, err := o.issuer.CreateSchema(request.IssuerDID, request.Name, request.Version, request.AttrNames)
	if err != nil {
		logutil.LogError(logger, commandName, createSchemaCommandMethod, "create schema : "+err.Error())

		return command.NewExecuteError(CreateSchemaErrorCode, fmt.Errorf("create schema : %w", err))
	}

	command.WriteNillableResponse(rw, &CreateSchemaResponse{Schema: schema}, logger)

	logutil.LogDebug(logger, commandName, createSchemaCommandMethod, "success")

	return nil
}

// CreateCredentialDefinition creates issuer signing keys for a schema.
func (o *Command) CreateCredentialDefinition(rw io.Writer, req io.Reader) command.Error {
	request := &CreateCredentialDefinitionArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialDefinitionCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	schema, err := parseDoc(request.Schema, anoncreds.ParseSchema, "schema")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialDefinitionCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	result, err := o.issuer.CreateCredentialDefinition(request.IssuerDID, schema, request.Tag,
		request.SignatureType, request.SupportRevocation)
	if err != nil {
		logutil.LogError(logger, commandName, createCredentialDefinitionCommandMethod,
			"create credential definition : "+err.Error())

		return command.NewExecuteError(CreateCredentialDefinitionErrorCode,
			fmt.Errorf("create credential definition : %w", err))
	}

	command.WriteNillableResponse(rw, &CreateCredentialDefinitionResponse{
		CredentialDefinition:        result.Definition,
		CredentialDefinitionPrivate: result.Private,
		KeyCorrectnessProof:         result.Proof,
	}, logger)

	logutil.LogDebug(logger, commandName, createCredentialDefinitionCommandMethod, "success")

	return nil
}

// CreateCredentialOffer starts an issuance exchange.
func (o *Command) CreateCredentialOffer(rw io.Writer, req io.Reader) command.Error {
	request := &CreateCredentialOfferArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialOfferCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	credDef, err := parseDoc(request.CredentialDefinition, anoncreds.ParseCredentialDefinition,
		"credential definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialOfferCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	keyProof, err := parseDoc(request.KeyCorrectnessProof, anoncreds.ParseKeyCorrectnessProof,
		"key correctness proof")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialOfferCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	offer, err := o.issuer.CreateCredentialOffer(credDef, keyProof)
	if err != nil {
		logutil.LogError(logger, commandName, createCredentialOfferCommandMethod,
			"create credential offer : "+err.Error())

		return command.NewExecuteError(CreateCredentialOfferErrorCode,
			fmt.Errorf("create credential offer : %w", err))
	}

	command.WriteNillableResponse(rw, &CreateCredentialOfferResponse{CredentialOffer: offer}, logger)

	logutil.LogDebug(logger, commandName, createCredentialOfferCommandMethod, "success")

	return nil
}

// CreateMasterSecret creates a master secret and stores it under the given
// name, or under a generated one when no name is given. The secret itself
// never leaves the store.
func (o *Command) CreateMasterSecret(rw io.Writer, req io.Reader) command.Error {
	request := &CreateMasterSecretArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, createMasterSecretCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	name := request.Name
	if name == "" {
		name = uuid.New().String()
	}

	secret, err := o.holder.CreateMasterSecret()
	if err != nil {
		logutil.LogError(logger, commandName, createMasterSecretCommandMethod, "create master secret : "+err.Error())

		return command.NewExecuteError(CreateMasterSecretErrorCode, fmt.Errorf("create master secret : %w", err))
	}

	if err := o.store.SaveMasterSecret(name, secret); err != nil {
		logutil.LogError(logger, commandName, createMasterSecretCommandMethod, "save master secret : "+err.Error(),
			logutil.CreateKeyValueString(secretName, name))

		return command.NewExecuteError(CreateMasterSecretErrorCode, fmt.Errorf("save master secret : %w", err))
	}

	command.WriteNillableResponse(rw, &CreateMasterSecretResponse{Name: name}, logger)

	logutil.LogDebug(logger, commandName, createMasterSecretCommandMethod, "success",
		logutil.CreateKeyValueString(secretName, name))

	return nil
}

// CreateCredentialRequest answers a credential offer with a blinded link
// secret.
func (o *Command) CreateCredentialRequest(rw io.Writer, req io.Reader) command.Error {
	request := &CreateCredentialRequestArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialRequestCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.MasterSecretName == "" {
		logutil.LogDebug(logger, commandName, createCredentialRequestCommandMethod, errEmptyMasterSecret)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyMasterSecret))
	}

	credDef, err := parseDoc(request.CredentialDefinition, anoncreds.ParseCredentialDefinition,
		"credential definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialRequestCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	offer, err := parseDoc(request.CredentialOffer, anoncreds.ParseCredentialOffer, "credential offer")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialRequestCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	secret, err := o.store.GetMasterSecret(request.MasterSecretName)
	if err != nil {
		logutil.LogError(logger, commandName, createCredentialRequestCommandMethod, "get master secret : "+err.Error(),
			logutil.CreateKeyValueString(secretName, request.MasterSecretName))

		return command.NewExecuteError(CreateCredentialRequestErrorCode, fmt.Errorf("get master secret : %w", err))
	}

	result, err := o.holder.CreateCredentialRequest(request.ProverDID, credDef, secret,
		request.MasterSecretName, offer)
	if err != nil {
		logutil.LogError(logger, commandName, createCredentialRequestCommandMethod,
			"create credential request : "+err.Error())

		return command.NewExecuteError(CreateCredentialRequestErrorCode,
			fmt.Errorf("create credential request : %w", err))
	}

	command.WriteNillableResponse(rw, &CreateCredentialRequestResponse{
		CredentialRequest:         result.Request,
		CredentialRequestMetadata: result.Metadata,
	}, logger)

	logutil.LogDebug(logger, commandName, createCredentialRequestCommandMethod, "success")

	return nil
}

// CreateCredential signs a credential over a credential request.
func (o *Command) CreateCredential(rw io.Writer, req io.Reader) command.Error {
	request := &CreateCredentialArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	credDef, err := parseDoc(request.CredentialDefinition, anoncreds.ParseCredentialDefinition,
		"credential definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	credDefPrivate, err := parseDoc(request.CredentialDefinitionPrivate,
		anoncreds.ParseCredentialDefinitionPrivate, "credential definition private key")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	offer, err := parseDoc(request.CredentialOffer, anoncreds.ParseCredentialOffer, "credential offer")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	credRequest, err := parseDoc(request.CredentialRequest, anoncreds.ParseCredentialRequest,
		"credential request")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	values, err := anoncreds.NewCredentialValues(request.Values)
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialCommandMethod, "credential values : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("credential values : %w", err))
	}

	issueReq := &issuer.CreateCredentialRequest{
		CredDef:        credDef,
		CredDefPrivate: credDefPrivate,
		Offer:          offer,
		Request:        credRequest,
		Values:         values,
	}

	if request.Revocation != nil {
		revInfo, tailsFile, cmdErr := o.revocationInfo(request.Revocation)
		if cmdErr != nil {
			return cmdErr
		}

		defer closeTails(tailsFile)

		issueReq.Revocation = revInfo
	}

	result, err := o.issuer.CreateCredential(issueReq)
	if err != nil {
		logutil.LogError(logger, commandName, createCredentialCommandMethod, "create credential : "+err.Error())

		return command.NewExecuteError(CreateCredentialErrorCode, fmt.Errorf("create credential : %w", err))
	}

	command.WriteNillableResponse(rw, &CreateCredentialResponse{
		Credential:    result.Credential,
		RegistryState: result.RegistryState,
		RegistryDelta: result.Delta,
	}, logger)

	logutil.LogDebug(logger, commandName, createCredentialCommandMethod, "success")

	return nil
}

// revocationInfo resolves the registry material for one revocable issuance.
// The returned tails file is open and owned by the caller.
func (o *Command) revocationInfo(args *CredentialRevocationArgs) (*issuer.RevocationInfo, *tails.File, command.Error) {
	regDef, err := parseDoc(args.RevocationRegistryDefinition, anoncreds.ParseRevocationRegistryDefinition,
		"revocation registry definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialCommandMethod, err.Error())

		return nil, nil, command.NewValidationError(InvalidRequestErrorCode, err)
	}

	regDefPrivate, err := parseDoc(args.RevocationRegistryDefinitionPrivate,
		anoncreds.ParseRevocationRegistryDefinitionPrivate, "revocation registry private key")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialCommandMethod, err.Error())

		return nil, nil, command.NewValidationError(InvalidRequestErrorCode, err)
	}

	regState, err := parseDoc(args.RegistryState, revocation.ParseState, "registry state")
	if err != nil {
		logutil.LogInfo(logger, commandName, createCredentialCommandMethod, err.Error())

		return nil, nil, command.NewValidationError(InvalidRequestErrorCode, err)
	}

	tailsFile, cmdErr := o.openTails(regDef, args.TailsLocation, createCredentialCommandMethod,
		CreateCredentialErrorCode)
	if cmdErr != nil {
		return nil, nil, cmdErr
	}

	return &issuer.RevocationInfo{
		Definition: regDef,
		Private:    regDefPrivate,
		State:      regState,
		Index:      args.CredentialRevocationIndex,
		Tails:      tailsFile,
	}, tailsFile, nil
}

// ProcessCredential finishes issuance on the holder side and stores the
// credential.
func (o *Command) ProcessCredential(rw io.Writer, req io.Reader) command.Error {
	request := &ProcessCredentialArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, processCredentialCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.MasterSecretName == "" {
		logutil.LogDebug(logger, commandName, processCredentialCommandMethod, errEmptyMasterSecret)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyMasterSecret))
	}

	cred, err := parseDoc(request.Credential, anoncreds.ParseCredential, "credential")
	if err != nil {
		logutil.LogInfo(logger, commandName, processCredentialCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	metadata, err := parseDoc(request.CredentialRequestMetadata, anoncreds.ParseCredentialRequestMetadata,
		"credential request metadata")
	if err != nil {
		logutil.LogInfo(logger, commandName, processCredentialCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	credDef, err := parseDoc(request.CredentialDefinition, anoncreds.ParseCredentialDefinition,
		"credential definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, processCredentialCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	regDef, err := parseOptionalDoc(request.RevocationRegistryDefinition,
		anoncreds.ParseRevocationRegistryDefinition, "revocation registry definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, processCredentialCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	secret, err := o.store.GetMasterSecret(request.MasterSecretName)
	if err != nil {
		logutil.LogError(logger, commandName, processCredentialCommandMethod, "get master secret : "+err.Error(),
			logutil.CreateKeyValueString(secretName, request.MasterSecretName))

		return command.NewExecuteError(ProcessCredentialErrorCode, fmt.Errorf("get master secret : %w", err))
	}

	processed, err := o.holder.ProcessCredential(cred, metadata, secret, credDef, regDef)
	if err != nil {
		logutil.LogError(logger, commandName, processCredentialCommandMethod, "process credential : "+err.Error())

		return command.NewExecuteError(ProcessCredentialErrorCode, fmt.Errorf("process credential : %w", err))
	}

	id, err := o.store.SaveCredential(request.CredentialID, processed)
	if err != nil {
		logutil.LogError(logger, commandName, processCredentialCommandMethod, "save credential : "+err.Error())

		return command.NewExecuteError(ProcessCredentialErrorCode, fmt.Errorf("save credential : %w", err))
	}

	command.WriteNillableResponse(rw, &ProcessCredentialResponse{CredentialID: id, Credential: processed}, logger)

	logutil.LogDebug(logger, commandName, processCredentialCommandMethod, "success",
		logutil.CreateKeyValueString(credentialID, id))

	return nil
}

// GetCredential retrieves a stored credential.
func (o *Command) GetCredential(rw io.Writer, req io.Reader) command.Error {
	request := &GetCredentialArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, getCredentialCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.ID == "" {
		logutil.LogDebug(logger, commandName, getCredentialCommandMethod, errEmptyCredentialID)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyCredentialID))
	}

	cred, err := o.store.GetCredential(request.ID)
	if err != nil {
		logutil.LogError(logger, commandName, getCredentialCommandMethod, "get credential : "+err.Error(),
			logutil.CreateKeyValueString(credentialID, request.ID))

		return command.NewExecuteError(GetCredentialErrorCode, fmt.Errorf("get credential : %w", err))
	}

	command.WriteNillableResponse(rw, &GetCredentialResponse{Credential: cred}, logger)

	logutil.LogDebug(logger, commandName, getCredentialCommandMethod, "success",
		logutil.CreateKeyValueString(credentialID, request.ID))

	return nil
}

// GetCredentials lists stored credential records, optionally filtered by
// one identifier tag.
func (o *Command) GetCredentials(rw io.Writer, req io.Reader) command.Error {
	request := &GetCredentialsArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, getCredentialsCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	filters := 0
	for _, filter := range []string{request.SchemaID, request.CredentialDefinitionID, request.RevocationRegistryID} {
		if filter != "" {
			filters++
		}
	}

	if filters > 1 {
		logutil.LogDebug(logger, commandName, getCredentialsCommandMethod, errMultipleFilters)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errMultipleFilters))
	}

	var records []*anoncredsstore.CredentialRecord

	switch {
	case request.SchemaID != "":
		records, err = o.store.GetCredentialsBySchemaID(request.SchemaID)
	case request.CredentialDefinitionID != "":
		records, err = o.store.GetCredentialsByCredDefID(request.CredentialDefinitionID)
	case request.RevocationRegistryID != "":
		records, err = o.store.GetCredentialsByRevRegID(request.RevocationRegistryID)
	default:
		records, err = o.store.GetCredentialRecords()
	}

	if err != nil {
		logutil.LogError(logger, commandName, getCredentialsCommandMethod, "get credential records : "+err.Error())

		return command.NewExecuteError(GetCredentialsErrorCode, fmt.Errorf("get credential records : %w", err))
	}

	command.WriteNillableResponse(rw, &GetCredentialsResponse{Records: records}, logger)

	logutil.LogDebug(logger, commandName, getCredentialsCommandMethod, "success")

	return nil
}

// RemoveCredential removes a stored credential.
func (o *Command) RemoveCredential(rw io.Writer, req io.Reader) command.Error {
	request := &RemoveCredentialArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, removeCredentialCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.ID == "" {
		logutil.LogDebug(logger, commandName, removeCredentialCommandMethod, errEmptyCredentialID)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyCredentialID))
	}

	if err := o.store.DeleteCredential(request.ID); err != nil {
		logutil.LogError(logger, commandName, removeCredentialCommandMethod, "delete credential : "+err.Error(),
			logutil.CreateKeyValueString(credentialID, request.ID))

		return command.NewExecuteError(RemoveCredentialErrorCode, fmt.Errorf("delete credential : %w", err))
	}

	command.WriteNillableResponse(rw, nil, logger)

	logutil.LogDebug(logger, commandName, removeCredentialCommandMethod, "success",
		logutil.CreateKeyValueString(credentialID, request.ID))

	return nil
}

// CreatePresentation builds a presentation answering a presentation
// request from stored or inline credentials.
func (o *Command) CreatePresentation(rw io.Writer, req io.Reader) command.Error {
	request := &CreatePresentationArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, createPresentationCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	if request.MasterSecretName == "" {
		logutil.LogDebug(logger, commandName, createPresentationCommandMethod, errEmptyMasterSecret)

		return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyMasterSecret))
	}

	presReq, err := parseDoc(request.PresentationRequest, anoncreds.ParsePresentationRequest,
		"presentation request")
	if err != nil {
		logutil.LogInfo(logger, commandName, createPresentationCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	entries, cmdErr := o.presentationEntries(request.Credentials)
	if cmdErr != nil {
		return cmdErr
	}

	proves := make([]*holder.CredentialProve, len(request.Proves))

	for i, prove := range request.Proves {
		if prove == nil {
			logutil.LogDebug(logger, commandName, createPresentationCommandMethod, errEmptyProveRow)

			return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyProveRow))
		}

		proves[i] = &holder.CredentialProve{
			EntryIdx:    prove.CredentialIndex,
			Referent:    prove.Referent,
			Reveal:      prove.Reveal,
			IsPredicate: prove.IsPredicate,
		}
	}

	selfNames := make([]string, 0, len(request.SelfAttested))
	selfValues := make([]string, 0, len(request.SelfAttested))

	for name, value := range request.SelfAttested {
		selfNames = append(selfNames, name)
		selfValues = append(selfValues, value)
	}

	schemas, schemaIDs, err := parseDocSet(request.Schemas, anoncreds.ParseSchema, "schema")
	if err != nil {
		logutil.LogInfo(logger, commandName, createPresentationCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	credDefs, credDefIDs, err := parseDocSet(request.CredentialDefinitions,
		anoncreds.ParseCredentialDefinition, "credential definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, createPresentationCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	secret, err := o.store.GetMasterSecret(request.MasterSecretName)
	if err != nil {
		logutil.LogError(logger, commandName, createPresentationCommandMethod, "get master secret : "+err.Error(),
			logutil.CreateKeyValueString(secretName, request.MasterSecretName))

		return command.NewExecuteError(CreatePresentationErrorCode, fmt.Errorf("get master secret : %w", err))
	}

	presentation, err := o.holder.CreatePresentation(&holder.CreatePresentationRequest{
		Request:          presReq,
		Entries:          entries,
		Proves:           proves,
		SelfAttestNames:  selfNames,
		SelfAttestValues: selfValues,
		MasterSecret:     secret,
		Schemas:          schemas,
		SchemaIDs:        schemaIDs,
		CredDefs:         credDefs,
		CredDefIDs:       credDefIDs,
	})
	if err != nil {
		logutil.LogError(logger, commandName, createPresentationCommandMethod, "create presentation : "+err.Error())

		return command.NewExecuteError(CreatePresentationErrorCode, fmt.Errorf("create presentation : %w", err))
	}

	command.WriteNillableResponse(rw, &CreatePresentationResponse{Presentation: presentation}, logger)

	logutil.LogDebug(logger, commandName, createPresentationCommandMethod, "success")

	return nil
}

// presentationEntries resolves the credential rows of a create presentation
// request into engine entries, loading stored records where referenced.
func (o *Command) presentationEntries(rows []*PresentationCredential) ([]*holder.CredentialEntry, command.Error) {
	entries := make([]*holder.CredentialEntry, len(rows))

	for i, row := range rows {
		if row == nil {
			logutil.LogDebug(logger, commandName, createPresentationCommandMethod, errEmptyCredentialRow)

			return nil, command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyCredentialRow))
		}

		var (
			cred *anoncreds.Credential
			err  error
		)

		switch {
		case len(row.Credential) != 0:
			cred, err = anoncreds.ParseCredential(row.Credential)
			if err != nil {
				logutil.LogInfo(logger, commandName, createPresentationCommandMethod, "parse credential : "+err.Error())

				return nil, command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("parse credential : %w", err))
			}
		case row.CredentialID != "":
			cred, err = o.store.GetCredential(row.CredentialID)
			if err != nil {
				logutil.LogError(logger, commandName, createPresentationCommandMethod, "get credential : "+err.Error(),
					logutil.CreateKeyValueString(credentialID, row.CredentialID))

				return nil, command.NewExecuteError(CreatePresentationErrorCode, fmt.Errorf("get credential : %w", err))
			}
		default:
			logutil.LogDebug(logger, commandName, createPresentationCommandMethod, errNoCredentialSource)

			return nil, command.NewValidationError(InvalidRequestErrorCode, errors.New(errNoCredentialSource))
		}

		var state *anoncreds.RevocationState

		switch {
		case len(row.RevocationState) != 0:
			state, err = anoncreds.ParseRevocationState(row.RevocationState)
			if err != nil {
				logutil.LogInfo(logger, commandName, createPresentationCommandMethod,
					"parse revocation state : "+err.Error())

				return nil, command.NewValidationError(InvalidRequestErrorCode,
					fmt.Errorf("parse revocation state : %w", err))
			}
		case row.RevocationStateID != "":
			state, err = o.store.GetRevocationState(row.RevocationStateID)
			if err != nil {
				logutil.LogError(logger, commandName, createPresentationCommandMethod,
					"get revocation state : "+err.Error())

				return nil, command.NewExecuteError(CreatePresentationErrorCode,
					fmt.Errorf("get revocation state : %w", err))
			}
		}

		entries[i] = &holder.CredentialEntry{Credential: cred, Timestamp: row.Timestamp, State: state}
	}

	return entries, nil
}

// VerifyPresentation verifies a presentation against its request.
func (o *Command) VerifyPresentation(rw io.Writer, req io.Reader) command.Error {
	request := &VerifyPresentationArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, verifyPresentationCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	presentation, err := parseDoc(request.Presentation, anoncreds.ParsePresentation, "presentation")
	if err != nil {
		logutil.LogInfo(logger, commandName, verifyPresentationCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	presReq, err := parseDoc(request.PresentationRequest, anoncreds.ParsePresentationRequest,
		"presentation request")
	if err != nil {
		logutil.LogInfo(logger, commandName, verifyPresentationCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	schemas, schemaIDs, err := parseDocSet(request.Schemas, anoncreds.ParseSchema, "schema")
	if err != nil {
		logutil.LogInfo(logger, commandName, verifyPresentationCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	credDefs, credDefIDs, err := parseDocSet(request.CredentialDefinitions,
		anoncreds.ParseCredentialDefinition, "credential definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, verifyPresentationCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	regDefs, regDefIDs, err := parseDocSet(request.RevocationRegistryDefinitions,
		anoncreds.ParseRevocationRegistryDefinition, "revocation registry definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, verifyPresentationCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	entries := make([]*verifier.RevocationEntry, len(request.RevocationEntries))

	for i, row := range request.RevocationEntries {
		if row == nil {
			logutil.LogDebug(logger, commandName, verifyPresentationCommandMethod, errEmptyCredentialRow)

			return command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyCredentialRow))
		}

		defIdx := -1

		for j, id := range regDefIDs {
			if id == row.RevocationRegistryID {
				defIdx = j

				break
			}
		}

		if defIdx < 0 {
			logutil.LogDebug(logger, commandName, verifyPresentationCommandMethod, errUnknownRevRegistry)

			return command.NewValidationError(InvalidRequestErrorCode, errors.New(errUnknownRevRegistry))
		}

		entry, err := parseDoc(row.Entry, anoncreds.ParseRevocationRegistry, "revocation registry entry")
		if err != nil {
			logutil.LogInfo(logger, commandName, verifyPresentationCommandMethod, err.Error())

			return command.NewValidationError(InvalidRequestErrorCode, err)
		}

		entries[i] = &verifier.RevocationEntry{
			DefEntryIdx: int32(defIdx),
			Entry:       entry,
			Timestamp:   row.Timestamp,
		}
	}

	verified, err := o.verifier.VerifyPresentation(&verifier.VerifyPresentationRequest{
		Presentation:  presentation,
		Request:       presReq,
		Schemas:       schemas,
		SchemaIDs:     schemaIDs,
		CredDefs:      credDefs,
		CredDefIDs:    credDefIDs,
		RevRegDefs:    regDefs,
		RevRegDefIDs:  regDefIDs,
		RevRegEntries: entries,
	})
	if err != nil {
		logutil.LogError(logger, commandName, verifyPresentationCommandMethod, "verify presentation : "+err.Error())

		return command.NewExecuteError(VerifyPresentationErrorCode, fmt.Errorf("verify presentation : %w", err))
	}

	command.WriteNillableResponse(rw, &VerifyPresentationResponse{Verified: verified}, logger)

	logutil.LogDebug(logger, commandName, verifyPresentationCommandMethod, "success")

	return nil
}

// CreateRevocationRegistry creates a revocation registry under a credential
// definition. The tails file is written into the controller's tails
// directory.
func (o *Command) CreateRevocationRegistry(rw io.Writer, req io.Reader) command.Error {
	request := &CreateRevocationRegistryArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, createRevocationRegistryCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	credDef, err := parseDoc(request.CredentialDefinition, anoncreds.ParseCredentialDefinition,
		"credential definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, createRevocationRegistryCommandMethod, err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	result, err := o.registry.CreateRegistry(&revocation.CreateRegistryRequest{
		OriginDID:    request.IssuerDID,
		CredDef:      credDef,
		Tag:          request.Tag,
		RevocDefType: request.RevocationType,
		IssuanceType: request.IssuanceType,
		MaxCredNum:   request.MaxCredNum,
		TailsDir:     o.tailsDir,
	})
	if err != nil {
		logutil.LogError(logger, commandName, createRevocationRegistryCommandMethod,
			"create revocation registry : "+err.Error())

		return command.NewExecuteError(CreateRevocationRegistryErrorCode,
			fmt.Errorf("create revocation registry : %w", err))
	}

	closeTails(result.Tails)

	command.WriteNillableResponse(rw, &CreateRevocationRegistryResponse{
		RevocationRegistryDefinition:        result.Definition,
		RevocationRegistryDefinitionPrivate: result.Private,
		RegistryState:                       result.State,
		RegistryDelta:                       result.Delta,
	}, logger)

	logutil.LogDebug(logger, commandName, createRevocationRegistryCommandMethod, "success")

	return nil
}

// UpdateRevocationRegistry moves a registry by issued and revoked index
// sets.
func (o *Command) UpdateRevocationRegistry(rw io.Writer, req io.Reader) command.Error {
	request := &UpdateRevocationRegistryArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, updateRevocationRegistryCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	regDef, regState, cmdErr := o.registryInputs(request.RevocationRegistryDefinition, request.RegistryState,
		updateRevocationRegistryCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	tailsFile, cmdErr := o.openTails(regDef, request.TailsLocation, updateRevocationRegistryCommandMethod,
		UpdateRevocationRegistryErrorCode)
	if cmdErr != nil {
		return cmdErr
	}

	defer closeTails(tailsFile)

	state, delta, err := o.registry.UpdateRegistry(regDef, regState, request.Issued, request.Revoked, tailsFile)
	if err != nil {
		logutil.LogError(logger, commandName, updateRevocationRegistryCommandMethod,
			"update revocation registry : "+err.Error())

		return command.NewExecuteError(UpdateRevocationRegistryErrorCode,
			fmt.Errorf("update revocation registry : %w", err))
	}

	command.WriteNillableResponse(rw, &UpdateRevocationRegistryResponse{
		RegistryState: state,
		RegistryDelta: delta,
	}, logger)

	logutil.LogDebug(logger, commandName, updateRevocationRegistryCommandMethod, "success")

	return nil
}

// RevokeCredential revokes one credential by its registry index.
func (o *Command) RevokeCredential(rw io.Writer, req io.Reader) command.Error {
	request := &RevokeCredentialArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, revokeCredentialCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	regDef, regState, cmdErr := o.registryInputs(request.RevocationRegistryDefinition, request.RegistryState,
		revokeCredentialCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	tailsFile, cmdErr := o.openTails(regDef, request.TailsLocation, revokeCredentialCommandMethod,
		RevokeCredentialErrorCode)
	if cmdErr != nil {
		return cmdErr
	}

	defer closeTails(tailsFile)

	state, delta, err := o.registry.Revoke(regDef, regState, request.CredentialRevocationIndex, tailsFile)
	if err != nil {
		logutil.LogError(logger, commandName, revokeCredentialCommandMethod, "revoke credential : "+err.Error())

		return command.NewExecuteError(RevokeCredentialErrorCode, fmt.Errorf("revoke credential : %w", err))
	}

	command.WriteNillableResponse(rw, &RevokeCredentialResponse{
		RegistryState: state,
		RegistryDelta: delta,
	}, logger)

	logutil.LogDebug(logger, commandName, revokeCredentialCommandMethod, "success")

	return nil
}

// CreateRevocationState computes and stores the revocation state a holder
// presents non-revocation proofs from.
func (o *Command) CreateRevocationState(rw io.Writer, req io.Reader) command.Error {
	request := &CreateRevocationStateArgs{}

	err := json.NewDecoder(req).Decode(request)
	if err != nil {
		logutil.LogInfo(logger, commandName, createRevocationStateCommandMethod, "request decode : "+err.Error())

		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf("request decode : %w", err))
	}

	regDef, regState, cmdErr := o.registryInputs(request.RevocationRegistryDefinition, request.RegistryState,
		createRevocationStateCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	witness, cmdErr := o.stateWitness(request)
	if cmdErr != nil {
		return cmdErr
	}

	var (
		prior      *anoncreds.RevocationState
		priorState *revocation.State
	)

	if request.StateID != "" {
		prior, err = o.store.GetRevocationState(request.StateID)
		if err != nil {
			logutil.LogError(logger, commandName, createRevocationStateCommandMethod,
				"get revocation state : "+err.Error())

			return command.NewExecuteError(CreateRevocationStateErrorCode,
				fmt.Errorf("get revocation state : %w", err))
		}
	}

	if len(request.PriorRegistryState) != 0 {
		priorState, err = revocation.ParseState(request.PriorRegistryState)
		if err != nil {
			logutil.LogInfo(logger, commandName, createRevocationStateCommandMethod,
				"parse prior registry state : "+err.Error())

			return command.NewValidationError(InvalidRequestErrorCode,
				fmt.Errorf("parse prior registry state : %w", err))
		}
	}

	tailsFile, cmdErr := o.openTails(regDef, request.TailsLocation, createRevocationStateCommandMethod,
		CreateRevocationStateErrorCode)
	if cmdErr != nil {
		return cmdErr
	}

	defer closeTails(tailsFile)

	state, err := o.registry.CreateOrUpdateState(&revocation.StateRequest{
		Definition: regDef,
		State:      regState,
		Index:      request.CredentialRevocationIndex,
		Tails:      tailsFile,
		Witness:    witness,
		Prior:      prior,
		PriorState: priorState,
		Timestamp:  request.Timestamp,
	})
	if err != nil {
		logutil.LogError(logger, commandName, createRevocationStateCommandMethod,
			"create revocation state : "+err.Error())

		return command.NewExecuteError(CreateRevocationStateErrorCode,
			fmt.Errorf("create revocation state : %w", err))
	}

	id, err := o.store.SaveRevocationState(request.StateID, regDef.ID, state)
	if err != nil {
		logutil.LogError(logger, commandName, createRevocationStateCommandMethod,
			"save revocation state : "+err.Error())

		return command.NewExecuteError(CreateRevocationStateErrorCode,
			fmt.Errorf("save revocation state : %w", err))
	}

	command.WriteNillableResponse(rw, &CreateRevocationStateResponse{StateID: id, RevocationState: state}, logger)

	logutil.LogDebug(logger, commandName, createRevocationStateCommandMethod, "success")

	return nil
}

// stateWitness pulls the issuance witness out of the credential named by a
// create revocation state request, inline or stored.
func (o *Command) stateWitness(request *CreateRevocationStateArgs) (json.RawMessage, command.Error) {
	switch {
	case len(request.Credential) != 0:
		cred, err := anoncreds.ParseCredential(request.Credential)
		if err != nil {
			logutil.LogInfo(logger, commandName, createRevocationStateCommandMethod,
				"parse credential : "+err.Error())

			return nil, command.NewValidationError(InvalidRequestErrorCode,
				fmt.Errorf("parse credential : %w", err))
		}

		return cred.Witness, nil
	case request.CredentialID != "":
		cred, err := o.store.GetCredential(request.CredentialID)
		if err != nil {
			logutil.LogError(logger, commandName, createRevocationStateCommandMethod,
				"get credential : "+err.Error(),
				logutil.CreateKeyValueString(credentialID, request.CredentialID))

			return nil, command.NewExecuteError(CreateRevocationStateErrorCode,
				fmt.Errorf("get credential : %w", err))
		}

		return cred.Witness, nil
	}

	return nil, nil
}

// registryInputs parses the definition and state documents shared by the
// registry operations.
func (o *Command) registryInputs(rawDef, rawState json.RawMessage,
	method string) (*anoncreds.RevocationRegistryDefinition, *revocation.State, command.Error) {
	regDef, err := parseDoc(rawDef, anoncreds.ParseRevocationRegistryDefinition,
		"revocation registry definition")
	if err != nil {
		logutil.LogInfo(logger, commandName, method, err.Error())

		return nil, nil, command.NewValidationError(InvalidRequestErrorCode, err)
	}

	regState, err := parseDoc(rawState, revocation.ParseState, "registry state")
	if err != nil {
		logutil.LogInfo(logger, commandName, method, err.Error())

		return nil, nil, command.NewValidationError(InvalidRequestErrorCode, err)
	}

	return regDef, regState, nil
}

// openTails opens the tails file at the given location, falling back to the
// location recorded in the registry definition.
func (o *Command) openTails(def *anoncreds.RevocationRegistryDefinition, location,
	method string, code command.Code) (*tails.File, command.Error) {
	if location == "" {
		location = def.Value.TailsLocation
	}

	if location == "" {
		logutil.LogDebug(logger, commandName, method, errEmptyTailsLocation)

		return nil, command.NewValidationError(InvalidRequestErrorCode, errors.New(errEmptyTailsLocation))
	}

	tailsFile, err := tails.Open(location)
	if err != nil {
		logutil.LogError(logger, commandName, method, "open tails file : "+err.Error())

		return nil, command.NewExecuteError(code, fmt.Errorf("open tails file : %w", err))
	}

	return tailsFile, nil
}

func closeTails(tailsFile *tails.File) {
	if tailsFile == nil {
		return
	}

	if err := tailsFile.Close(); err != nil {
		logger.Warnf("close tails file: %v", err)
	}
}

// parseDoc parses one JSON document off a request, reporting absence by the
// document's name.
func parseDoc[T any](raw json.RawMessage, parse func([]byte) (T, error), what string) (T, error) {
	var zero T

	if len(raw) == 0 {
		return zero, fmt.Errorf("missing %s", what)
	}

	doc, err := parse(raw)
	if err != nil {
		return zero, fmt.Errorf("parse %s : %w", what, err)
	}

	return doc, nil
}

// parseOptionalDoc is parseDoc for documents a request may omit.
func parseOptionalDoc[T any](raw json.RawMessage, parse func([]byte) (T, error), what string) (T, error) {
	var zero T

	if len(raw) == 0 {
		return zero, nil
	}

	return parseDoc(raw, parse, what)
}

// parseDocSet parses an id-to-document map into the positionally paired
// lists the engine consumes.
func parseDocSet[T any](docs map[string]json.RawMessage, parse func([]byte) (T, error),
	what string) ([]T, []string, error) {
	list := make([]T, 0, len(docs))
	ids := make([]string, 0, len(docs))

	for id, raw := range docs {
		doc, err := parse(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s %q : %w", what, id, err)
		}

		list = append(list, doc)
		ids = append(ids, id)
	}

	return list, ids, nil
}
