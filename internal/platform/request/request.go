// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/taibuivan/tablegate/internal/platform/apperr"
)

/*
DecodeObject reads the request body and decodes it into a generic JSON object.

Write bodies have no compile-time shape: the accepted keys are the columns of
the target table, known only at runtime. Numbers are decoded as [json.Number]
so integer precision survives until the database coerces the value.

Returns:
  - map[string]any: The decoded object
  - error: apperr.BadRequest if the body is not a JSON object
*/
func DecodeObject(request *http.Request) (map[string]any, error) {
	decoder := json.NewDecoder(request.Body)
	decoder.UseNumber()

	var body map[string]any
	if err := decoder.Decode(&body); err != nil {
		return nil, apperr.BadRequest("Invalid JSON body")
	}
	if body == nil {
		return nil, apperr.BadRequest("Invalid JSON body")
	}

	return body, nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}
