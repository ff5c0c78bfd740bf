// Copyright (c) 2026 Tablegate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apidoc generates the gateway's self-describing OpenAPI 3 document.

The document is derived entirely from introspected table descriptors: every
table contributes a collection path and a by-id path, a row schema (the
shape of returned rows) and a write schema (the shape of accepted bodies,
primary key omitted). Filter parameters are advertised per column with
operator applicability by column type; the parser itself accepts more than
the document advertises and lets the database be the final authority.

The assembled document is cached in the control plane under a digest of all
per-table introspection tokens and regenerated, stale-while-revalidate,
whenever that digest moves.
*/
package apidoc

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-openapi/inflect"

	"github.com/taibuivan/tablegate/internal/catalog"
)

// BuildDocument assembles the merged OpenAPI document for a set of tables.
// Callers pass tables in a deterministic order; the document version is the
// global schema digest the document was built against.
func BuildDocument(tables []*catalog.Table, serverURL, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Tablegate",
			Description: "Auto-generated REST gateway over the configured PostgreSQL schema.",
			Version:     version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{},
		},
	}
	doc.AddServer(&openapi3.Server{URL: serverURL})

	for _, table := range tables {
		addTable(doc, table)
	}

	return doc
}

// addTable mounts one table's schemas and path items into the document.
func addTable(doc *openapi3.T, table *catalog.Table) {
	entity := inflect.Camelize(inflect.Singularize(table.Name))
	rowName := entity + "Row"
	writeName := entity + "Write"

	doc.Components.Schemas[rowName] = rowSchema(table).NewRef()
	doc.Components.Schemas[writeName] = writeSchema(table).NewRef()

	rowRef := schemaRef(rowName)
	writeRef := schemaRef(writeName)

	doc.Paths.Set("/api/"+table.Name+"/", collectionItem(table, entity, rowRef, writeRef))
	if table.PrimaryKey != "" {
		doc.Paths.Set("/api/"+table.Name+"/{id}", byIDItem(table, entity, rowRef, writeRef))
	}
}

// # Row & Write Schemas

// rowSchema is the shape of rows the gateway returns: every column, with
// nullable columns accepting null.
func rowSchema(table *catalog.Table) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	for _, column := range table.Columns {
		property := columnSchema(column)
		property.Nullable = column.Nullable
		schema.WithPropertyRef(column.Name, property.NewRef())
		if !column.Nullable {
			schema.Required = append(schema.Required, column.Name)
		}
	}
	return schema
}

// writeSchema is the shape of accepted write bodies: the primary key is
// omitted and nullable columns may be absent.
func writeSchema(table *catalog.Table) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	for _, column := range table.Columns {
		if column.Name == table.PrimaryKey {
			continue
		}
		schema.WithPropertyRef(column.Name, columnSchema(column).NewRef())
		if !column.Nullable {
			schema.Required = append(schema.Required, column.Name)
		}
	}
	return schema
}

// columnSchema maps a column's classification to an OpenAPI scalar schema.
func columnSchema(column catalog.Column) *openapi3.Schema {
	switch column.Kind() {
	case catalog.KindInteger:
		return openapi3.NewInt64Schema()
	case catalog.KindNumeric:
		return openapi3.NewFloat64Schema()
	case catalog.KindBoolean:
		return openapi3.NewBoolSchema()
	case catalog.KindTimestamp:
		return openapi3.NewDateTimeSchema()
	case catalog.KindUUID:
		return openapi3.NewUUIDSchema()
	case catalog.KindJSON:
		return openapi3.NewSchema()
	default:
		return openapi3.NewStringSchema()
	}
}

func schemaRef(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

// # Path Items

// collectionItem describes the /api/<table>/ surface.
func collectionItem(table *catalog.Table, entity string, rowRef, writeRef *openapi3.SchemaRef) *openapi3.PathItem {
	plural := inflect.Camelize(inflect.Pluralize(table.Name))

	list := operation("list"+plural, fmt.Sprintf("List %s rows.", table.Name))
	for _, parameter := range listParameters(table) {
		list.AddParameter(parameter)
	}
	list.AddResponse(200, jsonResponse("Matching rows.", arrayOf(rowRef)))

	create := operation("create"+entity, fmt.Sprintf("Insert one %s row, optionally as an upsert.", table.Name))
	for _, parameter := range insertParameters(table) {
		create.AddParameter(parameter)
	}
	create.RequestBody = jsonBody(writeRef)
	create.AddResponse(201, jsonResponse("Inserted row.", rowRef))
	create.AddResponse(204, plainResponse("Conflict target matched and the row was skipped."))

	replace := operation("replace"+plural, fmt.Sprintf("Full-replace every %s row the filters select.", table.Name))
	replace.Parameters = writeParameters(table)
	replace.RequestBody = jsonBody(writeRef)
	replace.AddResponse(200, jsonResponse("Updated rows, when returning was requested.", arrayOf(rowRef)))
	replace.AddResponse(204, plainResponse("Updated without returning, or no rows matched."))
	replace.AddResponse(400, errorResponse("A required column is missing from the body."))

	patch := operation("update"+plural, fmt.Sprintf("Partially update every %s row the filters select.", table.Name))
	patch.Parameters = writeParameters(table)
	patch.RequestBody = jsonBody(writeRef)
	patch.AddResponse(200, jsonResponse("Updated rows, when returning was requested.", arrayOf(rowRef)))
	patch.AddResponse(204, plainResponse("Updated without returning, or no rows matched."))

	remove := operation("delete"+plural, fmt.Sprintf("Delete every %s row the filters select.", table.Name))
	remove.Parameters = deleteParameters(table)
	remove.AddResponse(200, jsonResponse("Deleted rows, when returning was requested.", arrayOf(rowRef)))
	remove.AddResponse(204, plainResponse("Deleted without returning, or no rows matched."))

	return &openapi3.PathItem{
		Get:    list,
		Post:   create,
		Put:    replace,
		Patch:  patch,
		Delete: remove,
	}
}

// byIDItem describes the /api/<table>/{id} surface.
func byIDItem(table *catalog.Table, entity string, rowRef, writeRef *openapi3.SchemaRef) *openapi3.PathItem {
	idParameter := &openapi3.ParameterRef{
		Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()),
	}

	read := operation("get"+entity, fmt.Sprintf("Read one %s row by primary key.", table.Name))
	read.AddParameter(idParameter.Value)
	read.AddParameter(openapi3.NewQueryParameter("select").WithSchema(openapi3.NewStringSchema()).
		WithDescription("Comma-separated column projection."))
	read.AddResponse(200, jsonResponse("The row.", rowRef))
	read.AddResponse(404, errorResponse("No row with that primary key."))

	replace := operation("replace"+entity, fmt.Sprintf("Full-replace one %s row by primary key.", table.Name))
	replace.AddParameter(idParameter.Value)
	replace.AddParameter(returningParameter().Value)
	replace.RequestBody = jsonBody(writeRef)
	replace.AddResponse(200, jsonResponse("Updated row, when returning was requested.", rowRef))
	replace.AddResponse(204, plainResponse("Updated without returning."))
	replace.AddResponse(400, errorResponse("A required column is missing from the body."))
	replace.AddResponse(404, errorResponse("No row with that primary key."))

	patch := operation("update"+entity, fmt.Sprintf("Partially update one %s row by primary key.", table.Name))
	patch.AddParameter(idParameter.Value)
	patch.AddParameter(returningParameter().Value)
	patch.RequestBody = jsonBody(writeRef)
	patch.AddResponse(200, jsonResponse("Updated row, when returning was requested.", rowRef))
	patch.AddResponse(204, plainResponse("Updated without returning."))
	patch.AddResponse(404, errorResponse("No row with that primary key."))

	remove := operation("delete"+entity, fmt.Sprintf("Delete one %s row by primary key.", table.Name))
	remove.AddParameter(idParameter.Value)
	remove.AddParameter(returningParameter().Value)
	remove.AddParameter(openapi3.NewQueryParameter("hard_delete").WithSchema(openapi3.NewBoolSchema()).
		WithDescription("Physically delete even when the table has a soft-delete column."))
	remove.AddResponse(200, jsonResponse("Deleted row, when returning was requested.", rowRef))
	remove.AddResponse(204, plainResponse("Deleted without returning."))
	remove.AddResponse(404, errorResponse("No row with that primary key."))

	return &openapi3.PathItem{
		Get:    read,
		Put:    replace,
		Patch:  patch,
		Delete: remove,
	}
}

// # Parameters

// listParameters advertises the read grammar: pagination, sorting,
// projection, and one parameter per column/operator pair the column's type
// supports.
func listParameters(table *catalog.Table) []*openapi3.Parameter {
	parameters := []*openapi3.Parameter{
		openapi3.NewQueryParameter("order_by").WithSchema(openapi3.NewStringSchema()).
			WithDescription("Comma-separated sort directives; prefix a field with '-' for descending."),
		openapi3.NewQueryParameter("limit").WithSchema(openapi3.NewIntegerSchema().WithMin(1)),
		openapi3.NewQueryParameter("offset").WithSchema(openapi3.NewIntegerSchema().WithMin(0)),
		openapi3.NewQueryParameter("select").WithSchema(openapi3.NewStringSchema()).
			WithDescription("Comma-separated column projection."),
	}
	return append(parameters, filterParameters(table)...)
}

// filterParameters emits the per-column filter surface with operator
// applicability: ranges on orderable types, pattern matching on text,
// isnull on nullable columns.
func filterParameters(table *catalog.Table) []*openapi3.Parameter {
	var parameters []*openapi3.Parameter

	for _, column := range table.Columns {
		scalar := columnSchema(column)

		parameters = append(parameters,
			openapi3.NewQueryParameter(column.Name).WithSchema(scalar).
				WithDescription("Equality filter."),
			openapi3.NewQueryParameter(column.Name+"__in").WithSchema(openapi3.NewStringSchema()).
				WithDescription("Comma-separated membership filter."),
		)

		switch column.Kind() {
		case catalog.KindInteger, catalog.KindNumeric, catalog.KindTimestamp:
			for _, op := range []string{"gt", "gte", "lt", "lte"} {
				parameters = append(parameters,
					openapi3.NewQueryParameter(column.Name+"__"+op).WithSchema(columnSchema(column)))
			}
		case catalog.KindText:
			parameters = append(parameters,
				openapi3.NewQueryParameter(column.Name+"__like").WithSchema(openapi3.NewStringSchema()),
				openapi3.NewQueryParameter(column.Name+"__ilike").WithSchema(openapi3.NewStringSchema()))
		}

		if column.Nullable {
			parameters = append(parameters,
				openapi3.NewQueryParameter(column.Name+"__isnull").WithSchema(openapi3.NewBoolSchema()))
		}
	}

	return parameters
}

// insertParameters advertises the upsert grammar.
func insertParameters(table *catalog.Table) []*openapi3.Parameter {
	return []*openapi3.Parameter{
		returningParameter().Value,
		openapi3.NewQueryParameter("on_conflict").WithSchema(openapi3.NewStringSchema()).
			WithDescription("Conflict target column."),
		openapi3.NewQueryParameter("on_conflict_action").WithSchema(
			openapi3.NewStringSchema().WithEnum("nothing")).
			WithDescription("Explicit DO NOTHING."),
		openapi3.NewQueryParameter("on_conflict_update").WithSchema(openapi3.NewStringSchema()).
			WithDescription("Comma-separated columns for DO UPDATE SET."),
	}
}

// writeParameters advertises the bulk update surface: filters + returning.
func writeParameters(table *catalog.Table) openapi3.Parameters {
	parameters := openapi3.Parameters{returningParameter()}
	for _, parameter := range filterParameters(table) {
		parameters = append(parameters, &openapi3.ParameterRef{Value: parameter})
	}
	return parameters
}

// deleteParameters advertises the bulk delete surface.
func deleteParameters(table *catalog.Table) openapi3.Parameters {
	parameters := openapi3.Parameters{
		returningParameter(),
		{Value: openapi3.NewQueryParameter("hard_delete").WithSchema(openapi3.NewBoolSchema()).
			WithDescription("Physically delete even when the table has a soft-delete column.")},
	}
	for _, parameter := range filterParameters(table) {
		parameters = append(parameters, &openapi3.ParameterRef{Value: parameter})
	}
	return parameters
}

func returningParameter() *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter("returning").WithSchema(openapi3.NewStringSchema()).
			WithDescription("Comma-separated columns to return from the mutation."),
	}
}

// # Response Helpers

func operation(id, summary string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	return op
}

func jsonBody(ref *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref),
	}
}

func jsonResponse(description string, ref *openapi3.SchemaRef) *openapi3.Response {
	return openapi3.NewResponse().WithDescription(description).WithJSONSchemaRef(ref)
}

func plainResponse(description string) *openapi3.Response {
	return openapi3.NewResponse().WithDescription(description)
}

func errorResponse(description string) *openapi3.Response {
	schema := openapi3.NewObjectSchema().
		WithProperty("error", openapi3.NewStringSchema()).
		WithProperty("missingFields", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))
	schema.Required = []string{"error"}
	return openapi3.NewResponse().WithDescription(description).WithJSONSchema(schema)
}

func arrayOf(ref *openapi3.SchemaRef) *openapi3.SchemaRef {
	schema := openapi3.NewArraySchema()
	schema.Items = ref
	return schema.NewRef()
}
