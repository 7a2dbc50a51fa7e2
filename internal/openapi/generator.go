// Package openapi generates the OpenAPI 3.1 document for the schemafleet
// HTTP API.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// GenerateSpec builds the API document served at /openapi.json.
func GenerateSpec(baseURL, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Schemafleet API",
			Description: "Multi-tenant schema migration orchestrator: versioned schema catalog, baseline drift detection, and fan-out DDL execution.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	doc.Components = &components

	doc.Components.Schemas["ErrorResponse"] = errorResponseSchema()
	doc.Components.Schemas["SchemaDefinition"] = schemaDefinitionSchema()
	doc.Components.Schemas["ExecutionSummary"] = executionSummarySchema()
	doc.Components.Schemas["HistoryEntry"] = historyEntrySchema()
	doc.Components.Schemas["DetectionResult"] = detectionResultSchema()

	doc.Paths = openapi3.NewPaths()
	addSchemaPaths(doc)
	addExecutePaths(doc)
	addDetectionPaths(doc)
	addHistoryPath(doc)

	return doc
}

func addSchemaPaths(doc *openapi3.T) {
	defRef := openapi3.NewSchemaRef("#/components/schemas/SchemaDefinition", nil)
	defList := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: defRef,
		},
	}

	doc.Paths.Set("/api/v1/schemas", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"schemas"},
			Summary:     "List active schema definitions",
			OperationID: "list_schemas",
			Responses:   newResponses("200", "Active definitions across all roles", defList),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"schemas"},
			Summary:     "Register the initial version of a table schema",
			OperationID: "create_schema",
			RequestBody: jsonBody("Initial declaration with database_role, partition_type, and optional schema_version (defaults to 1.0.0)."),
			Responses:   newResponses("201", "Definition registered", defRef),
		},
	})

	doc.Paths.Set("/api/v1/schemas/{schemaID}/upgrade", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"schemas"},
			Summary:     "Register a new version on top of an existing definition",
			Description: "Fails with 409 when the new version is not strictly greater than the current active version.",
			OperationID: "upgrade_schema",
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{Value: pathIDParam("schemaID")},
			},
			RequestBody: jsonBody("New declaration, schema_version, and upgrade notes."),
			Responses:   newResponses("201", "New version registered, previous deactivated", defRef),
		},
	})

	doc.Paths.Set("/api/v1/schemas/history", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"schemas"},
			Summary:     "List every version of one table schema, active first",
			OperationID: "schema_history",
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{
					Value: openapi3.NewQueryParameter("table_name").
						WithDescription("Logical table name.").
						WithSchema(openapi3.NewStringSchema()),
				},
				&openapi3.ParameterRef{
					Value: openapi3.NewQueryParameter("database_role").
						WithDescription("Target database role: main, log, order, or static.").
						WithSchema(openapi3.NewStringSchema()),
				},
			},
			Responses: newResponses("200", "Version history", defList),
		},
	})
}

func addExecutePaths(doc *openapi3.T) {
	sumRef := openapi3.NewSchemaRef("#/components/schemas/ExecutionSummary", nil)

	doc.Paths.Set("/api/v1/execute", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"execute"},
			Summary:     "Fan one schema definition out across all tenants",
			Description: "Responds 200 once fan-out ran; per-target failures are reported inside the summary, not as transport errors.",
			OperationID: "execute",
			RequestBody: jsonBody("Either {schema_id} or {table_name, database_role, schema_version}; include_inactive overrides the active check."),
			Responses:   newResponses("200", "Per-target outcomes", sumRef),
		},
	})

	doc.Paths.Set("/api/v1/execute-all", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"execute"},
			Summary:     "Fan every active definition out across all tenants",
			OperationID: "execute_all",
			Responses: newResponses("200", "One summary per definition", &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: sumRef,
				},
			}),
		},
	})
}

func addDetectionPaths(doc *openapi3.T) {
	resRef := openapi3.NewSchemaRef("#/components/schemas/DetectionResult", nil)

	doc.Paths.Set("/api/v1/schema-detection/all", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"detection"},
			Summary:     "Dry-run baseline drift detection",
			OperationID: "detect_all",
			Responses:   newResponses("200", "Proposed schema versions, nothing persisted", resRef),
		},
	})

	doc.Paths.Set("/api/v1/schema-detection/detect-and-save", &openapi3.PathItem{
		Post: &openapi3.Operation{
			Tags:        []string{"detection"},
			Summary:     "Detect baseline drift and persist the proposals",
			OperationID: "detect_and_save",
			Responses:   newResponses("200", "Saved schema versions", resRef),
		},
	})
}

func addHistoryPath(doc *openapi3.T) {
	entryList := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: openapi3.NewSchemaRef("#/components/schemas/HistoryEntry", nil),
		},
	}

	doc.Paths.Set("/api/v1/history", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"history"},
			Summary:     "Query migration history, newest first",
			OperationID: "query_history",
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{
					Value: openapi3.NewQueryParameter("tenant_id").
						WithDescription("Restrict to one tenant.").
						WithSchema(openapi3.NewStringSchema()),
				},
				&openapi3.ParameterRef{
					Value: openapi3.NewQueryParameter("table_name").
						WithDescription("Restrict to one physical table.").
						WithSchema(openapi3.NewStringSchema()),
				},
				&openapi3.ParameterRef{
					Value: openapi3.NewQueryParameter("outcome").
						WithDescription("Restrict to success, skipped, or failed entries.").
						WithSchema(openapi3.NewStringSchema()),
				},
				&openapi3.ParameterRef{
					Value: openapi3.NewQueryParameter("limit").
						WithDescription("Maximum entries returned (default 100).").
						WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
				},
			},
			Responses: newResponses("200", "Matching history entries", entryList),
		},
	})
}

// ─── Component Schemas ──────────────────────────────────────────────────────

func errorResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    intSchema("int32"),
							"message": strSchema(""),
							"context": objSchema(),
						},
					},
				},
			},
		},
	}
}

func schemaDefinitionSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id":             intSchema("int64"),
				"table_name":     strSchema("Logical table name."),
				"database_role":  strSchema("main, log, order, or static."),
				"partition_type": strSchema("none, time, or store."),
				"schema_version": strSchema("Dotted triple, e.g. 1.2.0."),
				"declaration":    objSchema(),
				"upgrade_notes":  strSchema(""),
				"active":         boolSchema(),
				"created_at":     strSchema("RFC 3339 timestamp."),
			},
		},
	}
}

func executionSummarySchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"schema_id":      intSchema("int64"),
				"table_name":     strSchema(""),
				"schema_version": strSchema(""),
				"total":          intSchema("int32"),
				"successes":      intSchema("int32"),
				"failures":       intSchema("int32"),
				"skips":          intSchema("int32"),
				"targets": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"array"},
						Items: &openapi3.SchemaRef{
							Value: &openapi3.Schema{
								Type: &openapi3.Types{"object"},
								Properties: openapi3.Schemas{
									"tenant_id":      strSchema(""),
									"physical_table": strSchema(""),
									"outcome":        strSchema("success, skipped, or failed."),
									"statements":     intSchema("int32"),
									"error":          strSchema(""),
								},
							},
						},
					},
				},
			},
		},
	}
}

func historyEntrySchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id":             intSchema("int64"),
				"tenant_id":      strSchema(""),
				"database_role":  strSchema(""),
				"physical_table": strSchema(""),
				"schema_version": strSchema(""),
				"sql":            strSchema("The executed DDL statement."),
				"outcome":        strSchema("success, skipped, or failed."),
				"error_message":  strSchema(""),
				"started_at":     strSchema("RFC 3339 timestamp."),
				"finished_at":    strSchema("RFC 3339 timestamp."),
			},
		},
	}
}

func detectionResultSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"saved": boolSchema(),
				"proposals": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"array"},
						Items: &openapi3.SchemaRef{
							Value: &openapi3.Schema{
								Type: &openapi3.Types{"object"},
								Properties: openapi3.Schemas{
									"table_name":    strSchema(""),
									"database_role": strSchema(""),
									"kind":          strSchema("new, upgrade, or drop."),
									"version":       strSchema(""),
									"declaration":   objSchema(),
								},
							},
						},
					},
				},
			},
		},
	}
}

// ─── Builders ───────────────────────────────────────────────────────────────

func jsonBody(description string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(objSchema()),
		},
	}
}

func pathIDParam(name string) *openapi3.Parameter {
	p := openapi3.NewPathParameter(name)
	p.Schema = &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}
	return p
}

func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)

	badReqDesc := "Bad request"
	responses.Set("400", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &badReqDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	notFoundDesc := "Not found"
	responses.Set("404", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &notFoundDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	conflictDesc := "Conflict (version not monotonic, definition exists, or inactive schema)"
	responses.Set("409", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &conflictDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	serverErrDesc := "Internal server error"
	responses.Set("500", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &serverErrDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	return responses
}

func strSchema(description string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: description},
	}
}

func intSchema(format string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: format},
	}
}

func boolSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}},
	}
}

func objSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{Type: &openapi3.Types{"object"}},
	}
}
