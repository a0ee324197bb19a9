// Package api holds the HTTP server bindings generated from api/openapi.yaml.
package api

//go:generate oapi-codegen --config=../../api/oapi-codegen.yaml ../../api/openapi.yaml
