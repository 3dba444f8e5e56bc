/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package restapi

import (
	"github.com/trustbloc/didtrust/pkg/restapi/operation"
)

// New returns new controller instance.
func New(reg operation.Registry) (*Controller, error) {
	var allHandlers []operation.Handler

	registryService := operation.New(reg)
	allHandlers = append(allHandlers, registryService.GetRESTHandlers()...)

	return &Controller{handlers: allHandlers}, nil
}

// Controller contains handlers for controller
type Controller struct {
	handlers []operation.Handler
}

// GetOperations returns all controller endpoints
func (c *Controller) GetOperations() []operation.Handler {
	return c.handlers
}
