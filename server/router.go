// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes stored evaluation runs over a read-only HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// A Route defines the parameters for an api endpoint.
type Route struct {
	Name        string
	Methods     []string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// Routes is a list of defined api endpoints.
type Routes []Route

// Router defines the required methods for retrieving api routes.
type Router interface {
	Routes() Routes
}

// NewRouter creates a new router for any number of api routers.
func NewRouter(routers ...Router) *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	for _, api := range routers {
		for _, route := range api.Routes() {
			router.
				Methods(route.Methods...).
				Path(route.Pattern).
				Name(route.Name).
				Handler(route.HandlerFunc)
		}
	}
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return router
}

// StatusError couples an error with the HTTP status it maps to.
type StatusError struct {
	Err  error
	Code int
}

// NewStatusError creates a StatusError.
func NewStatusError(err error, code int) StatusError {
	return StatusError{Err: err, Code: code}
}

// Error returns the associated error message.
func (se StatusError) Error() string {
	return se.Err.Error()
}

// Status returns the associated status code.
func (se StatusError) Status() int {
	return se.Code
}

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encoding failed")
	}
}

// writeError renders a JSON error envelope. StatusErrors carry their own
// code; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var se StatusError
	if errors.As(err, &se) {
		code = se.Status()
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
