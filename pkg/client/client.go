/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package client talks to a remote DID registry over its REST API. A Client can back a
// resolver.Resolver and anchor documents for a wallet.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/didtrust/pkg/doc/did"
	"github.com/trustbloc/didtrust/pkg/registry"
	"github.com/trustbloc/didtrust/pkg/restapi/models"
)

const (
	identifiersPath = "/identifiers"

	defaultMaxRetries = 3

	failSendRequest      = "failure while sending %s request to %s: %w"
	unexpectedStatusCode = "the registry returned status code %d along with the following message: %s"
)

var logger = log.New("didtrust/client")

type addHeaders func(req *http.Request) (*http.Header, error)

type marshalFunc func(interface{}) ([]byte, error)

// Client is used to interact with a registry server.
type Client struct {
	registryURL string
	httpClient  *http.Client
	marshal     marshalFunc
	headersFunc addHeaders
	maxRetries  uint64
	backOff     func() backoff.BackOff
}

// Option configures the registry client
type Option func(opts *Client)

// WithTLSConfig option is for definition of secured HTTP transport using a tls.Config instance
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(opts *Client) {
		opts.httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}
}

// WithHeaders option is for setting additional http request headers
func WithHeaders(addHeadersFunc addHeaders) Option {
	return func(opts *Client) {
		opts.headersFunc = addHeadersFunc
	}
}

// WithMaxRetries sets how many times a request is retried after a transport failure or a 503.
func WithMaxRetries(n uint64) Option {
	return func(opts *Client) {
		opts.maxRetries = n
	}
}

// New returns a new instance of a registry client.
func New(registryURL string, opts ...Option) *Client {
	c := &Client{
		registryURL: registryURL,
		httpClient:  &http.Client{},
		marshal:     json.Marshal,
		maxRetries:  defaultMaxRetries,
		backOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Anchor sends the registry a signed DID document and, optionally, its public profile.
func (c *Client) Anchor(ctx context.Context, docRecord, profileRecord []byte) error {
	doc, err := did.Parse(docRecord)
	if err != nil {
		return err
	}

	jsonToSend, err := c.marshal(models.AnchorRequest{DIDDocument: docRecord, PublicProfile: profileRecord})
	if err != nil {
		return fmt.Errorf("failed to marshal anchor request: %w", err)
	}

	logger.Debugf("Sending request to anchor %s", doc.ID)

	statusCode, respBytes, err := c.sendWithRetry(ctx, http.MethodPut, c.identifierURL(doc.ID), jsonToSend)
	if err != nil {
		return err
	}

	switch statusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", registry.ErrInvalidRecord, respBytes)
	default:
		return fmt.Errorf(unexpectedStatusCode, statusCode, respBytes)
	}
}

// Resolve fetches the anchored document of id.
func (c *Client) Resolve(ctx context.Context, id string) ([]byte, error) {
	statusCode, respBytes, err := c.sendWithRetry(ctx, http.MethodGet, c.identifierURL(id), nil)
	if err != nil {
		return nil, err
	}

	switch statusCode {
	case http.StatusOK:
		return respBytes, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, id)
	default:
		return nil, fmt.Errorf(unexpectedStatusCode, statusCode, respBytes)
	}
}

// GetPublicProfile fetches the public profile of the document's DID, or nil when it has none.
func (c *Client) GetPublicProfile(ctx context.Context, docRecord []byte) ([]byte, error) {
	doc, err := did.Parse(docRecord)
	if err != nil {
		return nil, err
	}

	if _, ok := doc.PublicProfileService(); !ok {
		return nil, nil
	}

	statusCode, respBytes, err := c.sendWithRetry(ctx, http.MethodGet, c.identifierURL(doc.ID)+"/profile", nil)
	if err != nil {
		return nil, err
	}

	switch statusCode {
	case http.StatusOK:
		return respBytes, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf(unexpectedStatusCode, statusCode, respBytes)
	}
}

// Identifiers lists the DIDs anchored in the registry.
func (c *Client) Identifiers(ctx context.Context) ([]string, error) {
	statusCode, respBytes, err := c.sendWithRetry(ctx, http.MethodGet, c.registryURL+identifiersPath, nil)
	if err != nil {
		return nil, err
	}

	if statusCode != http.StatusOK {
		return nil, fmt.Errorf(unexpectedStatusCode, statusCode, respBytes)
	}

	var response models.IdentifiersResponse

	err = json.Unmarshal(respBytes, &response)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal identifiers: %w", err)
	}

	return response.Identifiers, nil
}

func (c *Client) identifierURL(id string) string {
	return c.registryURL + identifiersPath + "/" + url.PathEscape(id)
}

// sendWithRetry retries transport failures and 503 responses with exponential backoff.
// Any other response is returned to the caller as is.
func (c *Client) sendWithRetry(ctx context.Context, method, endpoint string, body []byte) (int, []byte, error) {
	var (
		statusCode int
		respBytes  []byte
	)

	operation := func() error {
		var err error

		statusCode, respBytes, err = c.sendHTTPRequest(ctx, method, endpoint, body)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			return err
		}

		if statusCode == http.StatusServiceUnavailable {
			return fmt.Errorf(unexpectedStatusCode, statusCode, respBytes)
		}

		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.backOff(), c.maxRetries), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		logger.Warnf("%s %s failed, retrying in %s: %s", method, endpoint, wait, err)
	})
	if err != nil {
		return -1, nil, fmt.Errorf(failSendRequest, method, endpoint, err)
	}

	return statusCode, respBytes, nil
}

func (c *Client) sendHTTPRequest(ctx context.Context, method, endpoint string, body []byte) (int, []byte, error) {
	req, errReq := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewBuffer(body))
	if errReq != nil {
		return -1, nil, errReq
	}

	if c.headersFunc != nil {
		httpHeaders, err := c.headersFunc(req)
		if err != nil {
			return -1, nil, fmt.Errorf("add optional request headers error: %w", err)
		}

		if httpHeaders != nil {
			req.Header = httpHeaders.Clone()
		}
	}

	if method == http.MethodPut {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req) //nolint: bodyclose
	if err != nil {
		return -1, nil, err
	}

	defer closeReadCloser(resp.Body)

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return -1, nil, err
	}

	logger.Debugf(`sent %s request to %s response status code: %d response body: %s`, method, endpoint,
		resp.StatusCode, respBytes)

	return resp.StatusCode, respBytes, nil
}

func closeReadCloser(respBody io.ReadCloser) {
	err := respBody.Close()
	if err != nil {
		logger.Errorf("Failed to close response body: %s", err)
	}
}
