// Package tablesui is a local debugging UI for table data stored in
// tablestore. It serves a small JSON API (and a minimal index page)
// for inspecting tables, querying rows with filter expressions and
// editing individual rows.
//
// It is a development tool: no auth, permissive CORS, intended to run
// against a local database only.
package tablesui
