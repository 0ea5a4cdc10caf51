/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package anoncreds exposes the anonymous credential commands over REST.
package anoncreds

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/controller/command/anoncreds"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/controller/internal/cmdutil"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/controller/rest"
)

// constants for the anoncreds operations.
const (
	OperationID                    = "/anoncreds"
	CreateSchemaPath               = OperationID + "/schema"
	CreateCredentialDefinitionPath = OperationID + "/credential-definition"
	CreateCredentialOfferPath      = OperationID + "/credential-offer"
	CreateMasterSecretPath         = OperationID + "/master-secret"
	CreateCredentialRequestPath    = OperationID + "/credential-request"
	CreateCredentialPath           = OperationID + "/credential"
	ProcessCredentialPath          = OperationID + "/credential/process"
	GetCredentialsPath             = OperationID + "/credentials"
	GetCredentialPath              = OperationID + "/credential/{id}"
	RemoveCredentialPath           = OperationID + "/credential/{id}"
	CreatePresentationPath         = OperationID + "/presentation"
	VerifyPresentationPath         = OperationID + "/presentation/verify"
	CreateRevocationRegistryPath   = OperationID + "/revocation-registry"
	UpdateRevocationRegistryPath   = OperationID + "/revocation-registry/update"
	RevokeCredentialPath           = OperationID + "/revocation-registry/revoke"
	CreateRevocationStatePath      = OperationID + "/revocation-state"
)

// provider contains the dependencies of the anoncreds operations.
type provider interface {
	StorageProvider() storage.Provider
	TailsDir() string
}

// Operation contains REST operations over the anonymous credential engine.
type Operation struct {
	handlers []rest.Handler
	command  *anoncreds.Command
}

// New returns a new anoncreds REST controller instance.
func New(ctx provider) (*Operation, error) {
	cmd, err := anoncreds.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("new anoncreds command : %w", err)
	}

	o := &Operation{command: cmd}
	o.registerHandler()

	return o, nil
}

// GetRESTHandlers gets all controller API handlers available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

// registerHandler register handlers to be exposed from this protocol service as REST API endpoints.
func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(CreateSchemaPath, http.MethodPost, o.CreateSchema),
		cmdutil.NewHTTPHandler(CreateCredentialDefinitionPath, http.MethodPost, o.CreateCredentialDefinition),
		cmdutil.NewHTTPHandler(CreateCredentialOfferPath, http.MethodPost, o.CreateCredentialOffer),
		cmdutil.NewHTTPHandler(CreateMasterSecretPath, http.MethodPost, o.CreateMasterSecret),
		cmdutil.NewHTTPHandler(CreateCredentialRequestPath, http.MethodPost, o.CreateCredentialRequest),
		cmdutil.NewHTTPHandler(CreateCredentialPath, http.MethodPost, o.CreateCredential),
		cmdutil.NewHTTPHandler(ProcessCredentialPath, http.MethodPost, o.ProcessCredential),
		cmdutil.NewHTTPHandler(GetCredentialsPath, http.MethodGet, o.GetCredentials),
		cmdutil.NewHTTPHandler(GetCredentialPath, http.MethodGet, o.GetCredential),
		cmdutil.NewHTTPHandler(RemoveCredentialPath, http.MethodDelete, o.RemoveCredential),
		cmdutil.NewHTTPHandler(CreatePresentationPath, http.MethodPost, o.CreatePresentation),
		cmdutil.NewHTTPHandler(VerifyPresentationPath, http.MethodPost, o.VerifyPresentation),
		cmdutil.NewHTTPHandler(CreateRevocationRegistryPath, http.MethodPost, o.CreateRevocationRegistry),
		cmdutil.NewHTTPHandler(UpdateRevocationRegistryPath, http.MethodPost, o.UpdateRevocationRegistry),
		cmdutil.NewHTTPHandler(RevokeCredentialPath, http.MethodPost, o.RevokeCredential),
		cmdutil.NewHTTPHandler(CreateRevocationStatePath, http.MethodPost, o.CreateRevocationState),
	}
}

// CreateSchema swagger:route POST /anoncreds/schema anoncreds createSchemaReq
//
// Creates a credential schema.
//
// Responses:
//    default: genericError
//        200: createSchemaRes
func (o *Operation) CreateSchema(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.CreateSchema, rw, req.Body)
}

// CreateCredentialDefinition swagger:route POST /anoncreds/credential-definition anoncreds createCredentialDefinitionReq
//
// Creates issuer signing keys for a schema.
//
// Responses:
//    default: genericError
//        200: createCredentialDefinitionRes
func (o *Operation) CreateCredentialDefinition(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.CreateCredentialDefinition, rw, req.Body)
}

// CreateCredentialOffer swagger:route POST /anoncreds/credential-offer anoncreds createCredentialOfferReq
//
// Starts an issuance exchange.
//
// Responses:
//    default: genericError
//        200: createCredentialOfferRes
func (o *Operation) CreateCredentialOffer(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.CreateCredentialOffer, rw, req.Body)
}

// CreateMasterSecret swagger:route POST /anoncreds/master-secret anoncreds createMasterSecretReq
//
// Creates and stores a master secret.
//
// Responses:
//    default: genericError
//        200: createMasterSecretRes
func (o *Operation) CreateMasterSecret(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.CreateMasterSecret, rw, req.Body)
}

// CreateCredentialRequest swagger:route POST /anoncreds/credential-request anoncreds createCredentialRequestReq
//
// Answers a credential offer with a blinded link secret.
//
// Responses:
//    default: genericError
//        200: createCredentialRequestRes
func (o *Operation) CreateCredentialRequest(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.CreateCredentialRequest, rw, req.Body)
}

// CreateCredential swagger:route POST /anoncreds/credential anoncreds createCredentialReq
//
// Signs a credential over a credential request.
//
// Responses:
//    default: genericError
//        200: createCredentialRes
func (o *Operation) CreateCredential(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.CreateCredential, rw, req.Body)
}

// ProcessCredential swagger:route POST /anoncreds/credential/process anoncreds processCredentialReq
//
// Finishes issuance on the holder side and stores the credential.
//
// Responses:
//    default: genericError
//        200: processCredentialRes
func (o *Operation) ProcessCredential(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.ProcessCredential, rw, req.Body)
}

// GetCredentials swagger:route GET /anoncreds/credentials anoncreds getCredentialsReq
//
// Lists stored credential records, optionally filtered by one identifier.
//
// Responses:
//    default: genericError
//        200: getCredentialsRes
func (o *Operation) GetCredentials(rw http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()

	rest.Execute(o.command.GetCredentials, rw, bytes.NewBufferString(fmt.Sprintf(`{
		"schema_id":%q,
		"cred_def_id":%q,
		"rev_reg_id":%q
	}`, query.Get("schema_id"), query.Get("cred_def_id"), query.Get("rev_reg_id"))))
}

// GetCredential swagger:route GET /anoncreds/credential/{id} anoncreds getCredentialReq
//
// Retrieves a stored credential.
//
// Responses:
//    default: genericError
//        200: getCredentialRes
func (o *Operation) GetCredential(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.GetCredential, rw, bytes.NewBufferString(fmt.Sprintf(`{
		"id":%q
	}`, mux.Vars(req)["id"])))
}

// RemoveCredential swagger:route DELETE /anoncreds/credential/{id} anoncreds removeCredentialReq
//
// Removes a stored credential.
//
// Responses:
//    default: genericError
//        200: removeCredentialRes
func (o *Operation) RemoveCredential(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.RemoveCredential, rw, bytes.NewBufferString(fmt.Sprintf(`{
		"id":%q
	}`, mux.Vars(req)["id"])))
}

// CreatePresentation swagger:route POST /anoncreds/presentation anoncreds createPresentationReq
//
// Builds a presentation answering a presentation request.
//
// Responses:
//    default: genericError
//        200: createPresentationRes
func (o *Operation) CreatePresentation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.CreatePresentation, rw, req.Body)
}

// VerifyPresentation swagger:route POST /anoncreds/presentation/verify anoncreds verifyPresentationReq
//
// Verifies a presentation against its request.
//
// Responses:
//    default: genericError
//        200: verifyPresentationRes
func (o *Operation) VerifyPresentation(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.VerifyPresentation, rw, req.Body)
}

// CreateRevocationRegistry swagger:route POST /anoncreds/revocation-registry anoncreds createRevocationRegistryReq
//
// Creates a revocation registry under a credential definition.
//
// Responses:
//    default: genericError
//        200: createRevocationRegistryRes
func (o *Operation) CreateRevocationRegistry(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.CreateRevocationRegistry, rw, req.Body)
}

// UpdateRevocationRegistry swagger:route POST /anoncreds/revocation-registry/update anoncreds updateRevocationRegistryReq
//
// Moves a registry by issued and revoked index sets.
//
// Responses:
//    default: genericError
//        200: updateRevocationRegistryRes
func (o *Operation) UpdateRevocationRegistry(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.UpdateRevocationRegistry, rw, req.Body)
}

// RevokeCredential swagger:route POST /anoncreds/revocation-registry/revoke anoncreds revokeCredentialReq
//
// Revokes one credential by its registry index.
//
// Responses:
//    default: genericError
//        200: revokeCredentialRes
func (o *Operation) RevokeCredential(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.RevokeCredential, rw, req.Body)
}

// CreateRevocationState swagger:route POST /anoncreds/revocation-state anoncreds createRevocationStateReq
//
// Computes and stores the revocation state for a credential.
//
// Responses:
//    default: genericError
//        200: createRevocationStateRes
func (o *Operation) CreateRevocationState(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.CreateRevocationState, rw, req.Body)
}
