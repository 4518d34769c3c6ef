package http_test

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/samirrijal/siteboundary/api"
)

func loadOpenAPI(t *testing.T) *openapi3.T {
	t.Helper()
	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(api.OpenAPI)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}
	return doc
}

// TestOpenAPISpec validates the document and checks it covers every route.
func TestOpenAPISpec(t *testing.T) {
	doc := loadOpenAPI(t)

	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	expectedPaths := []string{
		"/v1/health",
		"/v1/ready",
		"/v1/formats",
		"/v1/sessions",
		"/v1/boundary/validate",
		"/v1/sessions/{id}/boundary",
		"/v1/sessions/{id}/boundary/import",
		"/v1/sessions/{id}/boundary/wkt",
		"/v1/sessions/{id}/boundary/imports",
		"/v1/sessions/{id}/boundary/export",
		"/v1/sessions/{id}/boundary/validation",
		"/v1/sessions/{id}/boundary/history",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := doc.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found", path)
		}
	}

	expectedSchemas := []string{
		"Coordinate",
		"Polygon",
		"DrawRequest",
		"Summary",
		"ValidationReport",
		"Boundary",
		"ImportResult",
		"BoundaryChange",
		"FormatCapability",
		"APIError",
		"Pagination",
	}
	for _, schema := range expectedSchemas {
		if doc.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}
}

func TestOpenAPISpec_WKTRouteDeprecated(t *testing.T) {
	doc := loadOpenAPI(t)

	item := doc.Paths.Find("/v1/sessions/{id}/boundary/wkt")
	if item == nil || item.Post == nil {
		t.Fatal("expected POST /v1/sessions/{id}/boundary/wkt")
	}
	if !item.Post.Deprecated {
		t.Error("expected the WKT route to be marked deprecated")
	}
}

// TestOpenAPIInfo verifies document metadata.
func TestOpenAPIInfo(t *testing.T) {
	doc := loadOpenAPI(t)

	if doc.Info.Title != "Site Boundary API" {
		t.Errorf("expected title 'Site Boundary API', got %q", doc.Info.Title)
	}
	if doc.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", doc.Info.Version)
	}
	if len(doc.Servers) == 0 {
		t.Error("expected at least one server")
	}
}
