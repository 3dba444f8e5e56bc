/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package operation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtrust/pkg/doc/did"
	"github.com/trustbloc/didtrust/pkg/internal/common/support"
	"github.com/trustbloc/didtrust/pkg/registry"
	"github.com/trustbloc/didtrust/pkg/restapi/messages"
	"github.com/trustbloc/didtrust/pkg/restapi/models"
)

const (
	logModuleName = "didtrust/restapi"

	identifiersEndpointPathRoot = "/identifiers"
	didPathVariable             = "did"

	listIdentifiersEndpoint = identifiersEndpointPathRoot
	resolveEndpoint         = identifiersEndpointPathRoot + "/{" + didPathVariable + "}"
	anchorEndpoint          = identifiersEndpointPathRoot + "/{" + didPathVariable + "}"
	profileEndpoint         = identifiersEndpointPathRoot + "/{" + didPathVariable + "}/profile"
	metricsEndpoint         = "/metrics"
)

var logger = log.New(logModuleName)

// Registry is the store behind the REST API.
type Registry interface {
	Anchor(ctx context.Context, docRecord, profileRecord []byte) error
	Resolve(ctx context.Context, id string) ([]byte, error)
	GetPublicProfile(ctx context.Context, docRecord []byte) ([]byte, error)
	Identifiers(ctx context.Context) ([]string, error)
}

// Handler represents an HTTP handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

// Operation defines handler logic for the registry service.
type Operation struct {
	handlers []Handler
	registry Registry
	metrics  *prometheus.Registry
	requests *prometheus.CounterVec
}

// New returns a new registry operations instance.
func New(reg Registry) *Operation {
	svc := &Operation{
		registry: reg,
		metrics:  prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "didtrust",
			Subsystem: "registry",
			Name:      "requests_total",
			Help:      "Registry API requests by operation and response code.",
		}, []string{"operation", "code"}),
	}

	svc.metrics.MustRegister(svc.requests)

	svc.registerHandler()

	return svc
}

// registerHandler register handlers to be exposed from this service as REST API endpoints.
func (c *Operation) registerHandler() {
	c.handlers = []Handler{
		support.NewHTTPHandler(listIdentifiersEndpoint, http.MethodGet, c.counted("list", c.listIdentifiersHandler)),
		support.NewHTTPHandler(resolveEndpoint, http.MethodGet, c.counted("resolve", c.resolveHandler)),
		support.NewHTTPHandler(anchorEndpoint, http.MethodPut, c.counted("anchor", c.anchorHandler)),
		support.NewHTTPHandler(profileEndpoint, http.MethodGet, c.counted("profile", c.profileHandler)),
		support.NewHTTPHandler(metricsEndpoint, http.MethodGet,
			promhttp.HandlerFor(c.metrics, promhttp.HandlerOpts{}).ServeHTTP),
	}
}

// GetRESTHandlers gets all controller API handler available for this service.
func (c *Operation) GetRESTHandlers() []Handler {
	return c.handlers
}

// List Identifiers swagger:route GET /identifiers listIdentifiersReq
//
// Lists the anchored DIDs.
//
// Responses:
//    default: genericError
//        200: listIdentifiersRes
func (c *Operation) listIdentifiersHandler(rw http.ResponseWriter, req *http.Request) {
	ids, err := c.registry.Identifiers(req.Context())
	if err != nil {
		writeErrorWithStatus(rw, http.StatusInternalServerError, messages.ListFailure, err)

		return
	}

	if ids == nil {
		ids = []string{}
	}

	response, err := json.Marshal(models.IdentifiersResponse{Identifiers: ids})
	if err != nil {
		writeErrorWithStatus(rw, http.StatusInternalServerError, messages.FailToMarshalIdentifiers, err)

		return
	}

	writeJSON(rw, response)
}

// Resolve swagger:route GET /identifiers/{did} resolveReq
//
// Returns the anchored DID document.
//
// Responses:
//    default: genericError
//        200: resolveRes
func (c *Operation) resolveHandler(rw http.ResponseWriter, req *http.Request) {
	id, success := unescapePathVar(didPathVariable, mux.Vars(req), rw)
	if !success {
		return
	}

	raw, err := c.registry.Resolve(req.Context(), id)
	if err != nil {
		writeErrorWithStatus(rw, statusFor(err), messages.ResolveFailure, id, err)

		return
	}

	logger.Debugf(messages.ResolveSuccess, id)

	writeJSON(rw, raw)
}

// Public Profile swagger:route GET /identifiers/{did}/profile profileReq
//
// Returns the public profile credential of an anchored DID.
//
// Responses:
//    default: genericError
//        200: profileRes
func (c *Operation) profileHandler(rw http.ResponseWriter, req *http.Request) {
	id, success := unescapePathVar(didPathVariable, mux.Vars(req), rw)
	if !success {
		return
	}

	docRecord, err := c.registry.Resolve(req.Context(), id)
	if err != nil {
		writeErrorWithStatus(rw, statusFor(err), messages.ProfileFailure, id, err)

		return
	}

	profile, err := c.registry.GetPublicProfile(req.Context(), docRecord)
	if err != nil {
		writeErrorWithStatus(rw, statusFor(err), messages.ProfileFailure, id, err)

		return
	}

	if profile == nil {
		writeErrorWithStatus(rw, http.StatusNotFound, messages.ProfileNotFound, id)

		return
	}

	writeJSON(rw, profile)
}

// Anchor swagger:route PUT /identifiers/{did} anchorReq
//
// Verifies and stores a signed DID document and, optionally, its public profile.
//
// Responses:
//    default: genericError
//        204: emptyRes
func (c *Operation) anchorHandler(rw http.ResponseWriter, req *http.Request) {
	id, success := unescapePathVar(didPathVariable, mux.Vars(req), rw)
	if !success {
		return
	}

	requestBody, err := io.ReadAll(req.Body)
	if err != nil {
		writeErrorWithStatus(rw, http.StatusInternalServerError, messages.AnchorFailReadRequestBody, id, err)

		return
	}

	var anchorRequest models.AnchorRequest

	err = json.Unmarshal(requestBody, &anchorRequest)
	if err != nil {
		writeInvalidAnchorRequest(rw, id, err, requestBody)

		return
	}

	if len(anchorRequest.DIDDocument) == 0 {
		writeInvalidAnchorRequest(rw, id, messages.ErrBlankDIDDocument, requestBody)

		return
	}

	doc, err := did.Parse(anchorRequest.DIDDocument)
	if err != nil {
		writeInvalidAnchorRequest(rw, id, err, requestBody)

		return
	}

	if doc.ID != id {
		writeInvalidAnchorRequest(rw, id, messages.ErrDIDMismatch, requestBody)

		return
	}

	var profileRecord []byte
	if len(anchorRequest.PublicProfile) > 0 {
		profileRecord = anchorRequest.PublicProfile
	}

	err = c.registry.Anchor(req.Context(), anchorRequest.DIDDocument, profileRecord)
	if err != nil {
		if statusFor(err) == http.StatusBadRequest {
			writeInvalidAnchorRequest(rw, id, err, requestBody)

			return
		}

		writeErrorWithStatus(rw, statusFor(err), messages.AnchorFailure, id, err)

		return
	}

	logger.Infof(messages.AnchorSuccess, id)

	rw.WriteHeader(http.StatusNoContent)
}

// counted wraps a handler so that every response is counted by operation and status code.
func (c *Operation) counted(operation string, handle http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}

		handle(recorder, req)

		c.requests.WithLabelValues(operation, strconv.Itoa(recorder.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidRecord), errors.Is(err, registry.ErrUnauthorizedUpdate):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorText(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
