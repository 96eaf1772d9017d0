package main

// orchestratorOpenAPISpec is a minimal OpenAPI 3 description of the
// HTTP surface internal/httpapi.Routes registers, served at
// /swagger/openapi.json for the bundled Swagger UI.
var orchestratorOpenAPISpec = []byte(`{
  "openapi": "3.0.3",
  "info": { "title": "orchestrator-svc", "version": "1.0.0" },
  "paths": {
    "/healthz": { "get": { "summary": "Liveness probe", "responses": { "200": { "description": "ok" } } } },
    "/readyz": { "get": { "summary": "Readiness probe", "responses": { "200": { "description": "ready" }, "503": { "description": "warming up" } } } },
    "/v1/services": { "post": { "summary": "Register a service", "responses": { "201": { "description": "created" } } } },
    "/v1/services/{id}": { "get": { "summary": "Get a service", "responses": { "200": { "description": "ok" }, "404": { "description": "not found" } } } },
    "/v1/dependencies": { "post": { "summary": "Add a dependency edge", "responses": { "201": { "description": "created" } } } },
    "/v1/nodes": { "post": { "summary": "Register a node", "responses": { "201": { "description": "created" } } } },
    "/v1/nodes/{id}": { "get": { "summary": "Get a node", "responses": { "200": { "description": "ok" }, "404": { "description": "not found" } } } },
    "/v1/delays": { "post": { "summary": "Set inter-node delay", "responses": { "204": { "description": "no content" } } } },
    "/v1/chains": { "post": { "summary": "Register a chain", "responses": { "201": { "description": "created" } } } },
    "/v1/deploy": { "post": { "summary": "Run Phase A-C placement", "responses": { "200": { "description": "ok" } } } },
    "/v1/refine": { "post": { "summary": "Run the Phase D refinement loop", "responses": { "200": { "description": "ok" } } } },
    "/v1/placement": { "get": { "summary": "Current service->node placement", "responses": { "200": { "description": "ok" } } } },
    "/v1/critical-paths": { "get": { "summary": "Current top critical path per chain", "responses": { "200": { "description": "ok" } } } },
    "/v1/metrics/latest": { "get": { "summary": "Latest monitoring snapshot", "responses": { "200": { "description": "ok" }, "503": { "description": "no snapshot yet" } } } },
    "/v1/completions": { "post": { "summary": "Report a chain execution outcome", "security": [ { "bearerAuth": [] } ], "responses": { "204": { "description": "no content" } } } },
    "/v1/local-updates/{nodeId}": { "post": { "summary": "Submit one node's local aggregator gradient step", "responses": { "204": { "description": "no content" } } } },
    "/v1/history": { "get": { "summary": "Recent deployment/refinement audit entries", "responses": { "200": { "description": "ok" } } } }
  },
  "components": {
    "securitySchemes": {
      "bearerAuth": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" }
    }
  }
}`)
