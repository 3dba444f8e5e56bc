/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go-ext/component/storage/mongodb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtrust/pkg/registry"
	"github.com/trustbloc/didtrust/pkg/restapi"
	cmdutils "github.com/trustbloc/didtrust/pkg/utils/cmd"
)

const (
	hostURLFlagName      = "host-url"
	hostURLEnvKey        = "DIDTRUST_HOST_URL"
	hostURLFlagShorthand = "u"
	hostURLFlagUsage     = "URL to run the registry instance on. Format: HostName:Port." +
		" Alternatively, this can be set with the following environment variable: " + hostURLEnvKey

	databaseTypeFlagName      = "database-type"
	databaseTypeEnvKey        = "DIDTRUST_DATABASE_TYPE"
	databaseTypeFlagShorthand = "t"
	databaseTypeFlagUsage     = "The type of database to store anchored documents in. Supported options: mem, mongodb." +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databaseTypeMemOption     = "mem"
	databaseTypeMongoDBOption = "mongodb"

	databaseURLFlagName      = "database-url"
	databaseURLEnvKey        = "DIDTRUST_DATABASE_URL"
	databaseURLFlagShorthand = "l"
	databaseURLFlagUsage     = "The URL of the database. Not needed if using mem." +
		" For MongoDB, this is the connection string, e.g. mongodb://localhost:27017." +
		" Alternatively, this can be set with the following environment variable: " + databaseURLEnvKey

	databasePrefixFlagName      = "database-prefix"
	databasePrefixEnvKey        = "DIDTRUST_DATABASE_PREFIX"
	databasePrefixFlagShorthand = "p"
	databasePrefixFlagUsage     = "An optional prefix to be used when creating and retrieving underlying databases." +
		" Alternatively, this can be set with the following environment variable: " + databasePrefixEnvKey

	logLevelFlagName      = "log-level"
	logLevelEnvKey        = "DIDTRUST_LOG_LEVEL"
	logLevelFlagShorthand = "o"
	logLevelFlagUsage     = "Logging level to set. Supported options: critical, error, warning, info, debug." +
		` Defaults to "info" if not set. Setting to "debug" may adversely impact performance. Alternatively, this can be ` +
		"set with the following environment variable: " + logLevelEnvKey

	logLevelCritical = "critical"
	logLevelError    = "error"
	logLevelWarn     = "warning"
	logLevelInfo     = "info"
	logLevelDebug    = "debug"

	tlsCertFileFlagName  = "tls-cert-file"
	tlsCertFileEnvKey    = "DIDTRUST_TLS_CERT_FILE"
	tlsCertFileFlagUsage = "TLS certificate file." +
		" Alternatively, this can be set with the following environment variable: " + tlsCertFileEnvKey

	tlsKeyFileFlagName  = "tls-key-file"
	tlsKeyFileEnvKey    = "DIDTRUST_TLS_KEY_FILE"
	tlsKeyFileFlagUsage = "TLS key file." +
		" Alternatively, this can be set with the following environment variable: " + tlsKeyFileEnvKey

	readHeaderTimeout = 10 * time.Second
)

var errMissingHostURL = errors.New("host URL not provided")
var errMissingDatabaseURL = errors.New("database URL not provided")
var errInvalidDatabaseType = errors.New("database type not set to a valid type." +
	" run start --help to see the available options")

var logger = log.New("didtrust-rest")

type registryParameters struct {
	srv            server
	hostURL        string
	databaseType   string
	databaseURL    string
	databasePrefix string
	logLevel       string
	tlsCertFile    string
	tlsKeyFile     string
}

type server interface {
	ListenAndServe(host, certFile, keyFile string, router http.Handler) error
}

// HTTPServer represents an actual HTTP server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation. TLS is
// used when both a certificate and a key file are given.
func (s *HTTPServer) ListenAndServe(host, certFile, keyFile string, router http.Handler) error {
	srv := &http.Server{Addr: host, Handler: router, ReadHeaderTimeout: readHeaderTimeout}

	if certFile != "" && keyFile != "" {
		return srv.ListenAndServeTLS(certFile, keyFile)
	}

	return srv.ListenAndServe()
}

// GetStartCmd returns the Cobra start command.
func GetStartCmd(srv server) *cobra.Command {
	startCmd := createStartCmd(srv)

	createFlags(startCmd)

	return startCmd
}

func createStartCmd(srv server) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the DID registry",
		Long:  "Start the DID registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := getParameters(cmd, srv)
			if err != nil {
				return err
			}

			return startRegistry(parameters)
		},
	}
}

func getParameters(cmd *cobra.Command, srv server) (*registryParameters, error) {
	hostURL, err := cmdutils.GetUserSetVar(cmd, hostURLFlagName, hostURLEnvKey, false)
	if err != nil {
		return nil, err
	}

	databaseType, err := cmdutils.GetUserSetVar(cmd, databaseTypeFlagName, databaseTypeEnvKey, false)
	if err != nil {
		return nil, err
	}

	databaseURL, err := cmdutils.GetUserSetVar(cmd, databaseURLFlagName, databaseURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	databasePrefix, err := cmdutils.GetUserSetVar(cmd, databasePrefixFlagName, databasePrefixEnvKey, true)
	if err != nil {
		return nil, err
	}

	logLevel, err := cmdutils.GetUserSetVar(cmd, logLevelFlagName, logLevelEnvKey, true)
	if err != nil {
		return nil, err
	}

	tlsCertFile, err := cmdutils.GetUserSetVar(cmd, tlsCertFileFlagName, tlsCertFileEnvKey, true)
	if err != nil {
		return nil, err
	}

	tlsKeyFile, err := cmdutils.GetUserSetVar(cmd, tlsKeyFileFlagName, tlsKeyFileEnvKey, true)
	if err != nil {
		return nil, err
	}

	return &registryParameters{
		srv:            srv,
		hostURL:        hostURL,
		databaseType:   databaseType,
		databaseURL:    databaseURL,
		databasePrefix: databasePrefix,
		logLevel:       logLevel,
		tlsCertFile:    tlsCertFile,
		tlsKeyFile:     tlsKeyFile,
	}, nil
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(hostURLFlagName, hostURLFlagShorthand, "", hostURLFlagUsage)
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)
	startCmd.Flags().StringP(databaseURLFlagName, databaseURLFlagShorthand, "", databaseURLFlagUsage)
	startCmd.Flags().StringP(databasePrefixFlagName, databasePrefixFlagShorthand, "", databasePrefixFlagUsage)
	startCmd.Flags().StringP(logLevelFlagName, logLevelFlagShorthand, "", logLevelFlagUsage)
	startCmd.Flags().StringP(tlsCertFileFlagName, "", "", tlsCertFileFlagUsage)
	startCmd.Flags().StringP(tlsKeyFileFlagName, "", "", tlsKeyFileFlagUsage)
}

func startRegistry(parameters *registryParameters) error {
	if parameters.hostURL == "" {
		return errMissingHostURL
	}

	setLogLevel(parameters.logLevel)

	provider, err := createProvider(parameters)
	if err != nil {
		return err
	}

	var opts []registry.Option

	// MongoDB prefixes its databases itself.
	if strings.EqualFold(parameters.databaseType, databaseTypeMemOption) {
		opts = append(opts, registry.WithStorePrefix(parameters.databasePrefix))
	}

	reg, err := registry.New(provider, opts...)
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}

	registryService, err := restapi.New(reg)
	if err != nil {
		return err
	}

	handlers := registryService.GetOperations()
	router := mux.NewRouter()
	router.UseEncodedPath()

	for _, handler := range handlers {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	handler := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPut},
		AllowedHeaders: []string{"Origin", "Accept", "Content-Type"},
	}).Handler(router)

	logrus.Infof("Starting didtrust-rest on host %s", parameters.hostURL)

	return parameters.srv.ListenAndServe(parameters.hostURL, parameters.tlsCertFile, parameters.tlsKeyFile, handler)
}

func createProvider(parameters *registryParameters) (storage.Provider, error) {
	switch {
	case strings.EqualFold(parameters.databaseType, databaseTypeMemOption):
		logrus.Warn("anchored documents are kept in memory and lost on restart")

		return mem.NewProvider(), nil
	case strings.EqualFold(parameters.databaseType, databaseTypeMongoDBOption):
		if parameters.databaseURL == "" {
			return nil, errMissingDatabaseURL
		}

		mongoDBProvider, err := mongodb.NewProvider(parameters.databaseURL,
			mongodb.WithDBPrefix(parameters.databasePrefix))
		if err != nil {
			return nil, fmt.Errorf("failed to create MongoDB provider: %w", err)
		}

		return mongoDBProvider, nil
	default:
		return nil, errInvalidDatabaseType
	}
}

func setLogLevel(logLevel string) {
	if logLevel == "" {
		logLevel = logLevelInfo
	}

	level, err := log.ParseLevel(logLevel)
	if err != nil {
		logger.Warnf(`%s is not a valid logging level. It must be one of the following: `+
			`critical, error, warning, info, debug. Defaulting to info.`, logLevel)

		level = log.INFO
	}

	log.SetLevel("", level)
}
