/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	leveldbstore "github.com/hyperledger/aries-framework-go/component/storage/leveldb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/andrewwhitehead/anoncreds-rs/pkg/common/log"
	"github.com/andrewwhitehead/anoncreds-rs/pkg/controller"
)

const (
	// api host flag.
	hostFlagName      = "api-host"
	hostEnvKey        = "ANONCREDS_API_HOST"
	hostFlagShorthand = "a"
	hostFlagUsage     = "Host Name:Port." +
		" Alternatively, this can be set with the following environment variable: " + hostEnvKey

	// api token flag.
	tokenFlagName      = "api-token"
	tokenEnvKey        = "ANONCREDS_API_TOKEN" // nolint:gosec
	tokenFlagShorthand = "t"
	tokenFlagUsage     = "Check for bearer token in the authorization header (optional)." +
		" Alternatively, this can be set with the following environment variable: " + tokenEnvKey

	databaseTypeFlagName      = "database-type"
	databaseTypeEnvKey        = "ANONCREDS_DATABASE_TYPE"
	databaseTypeFlagShorthand = "q"
	databaseTypeFlagUsage     = "The type of database to use for stored objects. " +
		"Supported options: mem, leveldb. " +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databaseURLFlagName      = "database-url"
	databaseURLEnvKey        = "ANONCREDS_DATABASE_URL"
	databaseURLFlagShorthand = "v"
	databaseURLFlagUsage     = "The URL (or path, for leveldb) of the database. Not needed if using memstore." +
		" Alternatively, this can be set with the following environment variable: " + databaseURLEnvKey

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutFlagUsage = "Total time in seconds to wait until the db is available before giving up." +
		" Default: " + databaseTimeoutDefault + " seconds." +
		" Alternatively, this can be set with the following environment variable: " + databaseTimeoutEnvKey
	databaseTimeoutEnvKey  = "ANONCREDS_DATABASE_TIMEOUT"
	databaseTimeoutDefault = "30"

	tailsDirFlagName      = "tails-dir"
	tailsDirEnvKey        = "ANONCREDS_TAILS_DIR"
	tailsDirFlagShorthand = "d"
	tailsDirFlagUsage     = "Directory registry tails files are written to and fetched into." +
		" Defaults to a directory under the user cache dir if not set." +
		" Alternatively, this can be set with the following environment variable: " + tailsDirEnvKey

	// log level.
	logLevelFlagName  = "log-level"
	logLevelEnvKey    = "ANONCREDS_LOG_LEVEL"
	logLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey

	tlsCertFileFlagName      = "tls-cert-file"
	tlsCertFileEnvKey        = "TLS_CERT_FILE"
	tlsCertFileFlagShorthand = "c"
	tlsCertFileFlagUsage     = "tls certificate file." +
		" Alternatively, this can be set with the following environment variable: " + tlsCertFileEnvKey

	tlsKeyFileFlagName      = "tls-key-file"
	tlsKeyFileEnvKey        = "TLS_KEY_FILE"
	tlsKeyFileFlagShorthand = "k"
	tlsKeyFileFlagUsage     = "tls key file." +
		" Alternatively, this can be set with the following environment variable: " + tlsKeyFileEnvKey

	databaseTypeMemOption     = "mem"
	databaseTypeLevelDBOption = "leveldb"
)

var (
	errMissingHost = errors.New("host not provided")
	logger         = log.New("anoncreds/rest-server")
)

type serverParameters struct {
	server                  server
	host, token             string
	tlsCertFile, tlsKeyFile string
	tailsDir                string
	dbParam                 *dbParam
}

type dbParam struct {
	dbType  string
	url     string
	timeout uint64
}

// nolint:gochecknoglobals
var supportedStorageProviders = map[string]func(url string) (storage.Provider, error){
	databaseTypeMemOption: func(_ string) (storage.Provider, error) { // nolint:unparam
		return mem.NewProvider(), nil
	},
	databaseTypeLevelDBOption: func(path string) (storage.Provider, error) { // nolint:unparam
		return leveldbstore.NewProvider(path), nil
	},
}

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, router)
	}

	return http.ListenAndServe(host, router)
}

// provider passes the configured dependencies to the controller operations.
type provider struct {
	storageProvider storage.Provider
	tailsDir        string
}

// StorageProvider returns the configured storage provider.
func (p *provider) StorageProvider() storage.Provider {
	return p.storageProvider
}

// TailsDir returns the configured tails directory.
func (p *provider) TailsDir() string {
	return p.tailsDir
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCmd(server)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCmd(server server) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the server",
		Long:  `Start the anoncreds controller server`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel, err := getUserSetVar(cmd, logLevelFlagName, logLevelEnvKey, true)
			if err != nil {
				return err
			}

			err = setLogLevel(logLevel)
			if err != nil {
				return err
			}

			host, err := getUserSetVar(cmd, hostFlagName, hostEnvKey, false)
			if err != nil {
				return err
			}

			token, err := getUserSetVar(cmd, tokenFlagName, tokenEnvKey, true)
			if err != nil {
				return err
			}

			dbParam, err := getDBParam(cmd)
			if err != nil {
				return err
			}

			tailsDir, err := getTailsDir(cmd)
			if err != nil {
				return err
			}

			tlsCertFile, err := getUserSetVar(cmd, tlsCertFileFlagName, tlsCertFileEnvKey, true)
			if err != nil {
				return err
			}

			tlsKeyFile, err := getUserSetVar(cmd, tlsKeyFileFlagName, tlsKeyFileEnvKey, true)
			if err != nil {
				return err
			}

			parameters := &serverParameters{
				server:      server,
				host:        host,
				token:       token,
				dbParam:     dbParam,
				tailsDir:    tailsDir,
				tlsCertFile: tlsCertFile,
				tlsKeyFile:  tlsKeyFile,
			}

			return startServer(parameters)
		},
	}
}

func getDBParam(cmd *cobra.Command) (*dbParam, error) {
	dbParam := &dbParam{}

	var err error

	dbParam.dbType, err = getUserSetVar(cmd, databaseTypeFlagName, databaseTypeEnvKey, false)
	if err != nil {
		return nil, err
	}

	dbParam.url, err = getUserSetVar(cmd, databaseURLFlagName, databaseURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbTimeout, err := getUserSetVar(cmd, databaseTimeoutFlagName, databaseTimeoutEnvKey, true)
	if err != nil {
		return nil, err
	}

	if dbTimeout == "" || dbTimeout == "0" {
		dbTimeout = databaseTimeoutDefault
	}

	t, err := strconv.Atoi(dbTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db timeout %s: %w", dbTimeout, err)
	}

	dbParam.timeout = uint64(t)

	return dbParam, nil
}

func getTailsDir(cmd *cobra.Command) (string, error) {
	tailsDir, err := getUserSetVar(cmd, tailsDirFlagName, tailsDirEnvKey, true)
	if err != nil {
		return "", err
	}

	if tailsDir != "" {
		return tailsDir, nil
	}

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve default tails dir: %w", err)
	}

	return cacheDir + "/anoncreds/tails", nil
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(hostFlagName, hostFlagShorthand, "", hostFlagUsage)
	startCmd.Flags().StringP(tokenFlagName, tokenFlagShorthand, "", tokenFlagUsage)
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)
	startCmd.Flags().StringP(databaseURLFlagName, databaseURLFlagShorthand, "", databaseURLFlagUsage)
	startCmd.Flags().StringP(databaseTimeoutFlagName, "", "", databaseTimeoutFlagUsage)
	startCmd.Flags().StringP(tailsDirFlagName, tailsDirFlagShorthand, "", tailsDirFlagUsage)
	startCmd.Flags().StringP(logLevelFlagName, "", "", logLevelFlagUsage)
	startCmd.Flags().StringP(tlsCertFileFlagName, tlsCertFileFlagShorthand, "", tlsCertFileFlagUsage)
	startCmd.Flags().StringP(tlsKeyFileFlagName, tlsKeyFileFlagShorthand, "", tlsKeyFileFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func validateAuthorizationBearerToken(w http.ResponseWriter, r *http.Request, token string) bool {
	actHdr := r.Header.Get("Authorization")
	expHdr := "Bearer " + token

	if subtle.ConstantTimeCompare([]byte(actHdr), []byte(expHdr)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorised.\n")) // nolint:gosec,errcheck

		return false
	}

	return true
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validateAuthorizationBearerToken(w, r, token) {
				next.ServeHTTP(w, r)
			}
		})
	}

	return middleware
}

func startServer(parameters *serverParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	storeProvider, err := createStoreProvider(parameters)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(parameters.tailsDir, 0o700); err != nil {
		return fmt.Errorf("create tails dir %s: %w", parameters.tailsDir, err)
	}

	handlers, err := controller.GetRESTHandlers(&provider{
		storageProvider: storeProvider,
		tailsDir:        parameters.tailsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to start anoncreds-rest on host [%s], failed to get rest handlers : %w",
			parameters.host, err)
	}

	router := mux.NewRouter()

	if parameters.token != "" {
		router.Use(authorizationMiddleware(parameters.token))
	}

	for _, handler := range handlers {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	logger.Infof("Starting anoncreds-rest on host [%s]", parameters.host)

	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)

	err = parameters.server.ListenAndServe(parameters.host, handler, parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return fmt.Errorf("failed to start anoncreds-rest on host [%s], cause:  %w", parameters.host, err)
	}

	return nil
}

func createStoreProvider(parameters *serverParameters) (storage.Provider, error) {
	provider, supported := supportedStorageProviders[parameters.dbParam.dbType]
	if !supported {
		return nil, fmt.Errorf("database type not set to a valid type." +
			" run start --help to see the available options")
	}

	var store storage.Provider

	err := backoff.RetryNotify(
		func() error {
			var openErr error
			store, openErr = provider(parameters.dbParam.url)
			return openErr
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), parameters.dbParam.timeout),
		func(retryErr error, t time.Duration) {
			logger.Warnf(
				"failed to connect to storage, will sleep for %s before trying again : %s\n",
				t, retryErr)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage at %s : %w", parameters.dbParam.url, err)
	}

	return store, nil
}
