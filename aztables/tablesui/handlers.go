package tablesui

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/acksell/nadella/aztables/table"
	"github.com/acksell/nadella/aztables/tablesdk"
	"github.com/acksell/nadella/aztables/tablestore"
)

// APIHandler serves the JSON API over a store.
type APIHandler struct {
	store  *tablestore.Store
	schema *LoadedSchema
}

func NewAPIHandler(store *tablestore.Store, schema *LoadedSchema) *APIHandler {
	return &APIHandler{store: store, schema: schema}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tables", h.listTables)
	mux.HandleFunc("GET /api/tables/{table}", h.getTable)
	mux.HandleFunc("GET /api/tables/{table}/rows", h.queryRows)
	mux.HandleFunc("POST /api/tables/{table}/rows", h.upsertRow)
	mux.HandleFunc("GET /api/tables/{table}/rows/{pk}/{rk}", h.getRow)
	mux.HandleFunc("DELETE /api/tables/{table}/rows/{pk}/{rk}", h.deleteRow)
}

// listTables returns every table with a declaration summary.
func (h *APIHandler) listTables(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.schema.Tables))
	for name := range h.schema.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	tables := make([]map[string]any, 0, len(names))
	for _, name := range names {
		t := h.schema.Tables[name]
		tables = append(tables, map[string]any{
			"name":        t.Name,
			"softDelete":  t.SoftDelete,
			"entityCount": len(t.Entities),
			"source":      h.schema.Sources[name],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

// getTable returns the full declaration of one table.
func (h *APIHandler) getTable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("table")
	t, ok := h.schema.Tables[name]
	if !ok {
		writeError(w, http.StatusNotFound, "table not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// queryRows runs a filter expression against a table.
//
//	GET /api/tables/orders/rows?filter=Status+eq+'open'&top=25&select=Status,Count
func (h *APIHandler) queryRows(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("table")
	if _, ok := h.schema.Tables[name]; !ok {
		writeError(w, http.StatusNotFound, "table not found: "+name)
		return
	}

	req := tablesdk.QueryRequest{
		Table:  name,
		Filter: r.URL.Query().Get("filter"),
		Top:    parseIntParam(r, "top", 25),
	}
	if sel := r.URL.Query().Get("select"); sel != "" {
		req.Select = strings.Split(sel, ",")
	}

	rows, err := h.store.Query(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "query failed: "+err.Error())
		return
	}

	out := make([]rowJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRowJSON(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out, "count": len(out)})
}

// getRow fetches one row by its composite key.
func (h *APIHandler) getRow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("table")
	pk := r.PathValue("pk")
	rk := r.PathValue("rk")

	rows, err := h.store.Query(r.Context(), tablesdk.QueryRequest{
		Table: name,
		Filter: tablesdk.BuildFilter(false, tablesdk.FilterParams{
			PartitionKey: pk,
			RowKey:       rk,
		}),
		Top: 1,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("row %s/%s not found", pk, rk))
		return
	}
	writeJSON(w, http.StatusOK, toRowJSON(rows[0]))
}

// upsertRow merges the posted row into the table.
func (h *APIHandler) upsertRow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("table")

	var in rowInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	row, err := in.toRow()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.store.Submit(r.Context(), name, tablesdk.Action{Kind: tablesdk.UpsertMergeRow, Row: row})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// deleteRow removes one row.
func (h *APIHandler) deleteRow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("table")
	row, err := table.NewRow(r.PathValue("pk"), r.PathValue("rk"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.store.Submit(r.Context(), name, tablesdk.Action{Kind: tablesdk.DeleteRow, Row: row})
	if err != nil {
		var terr *tablesdk.TransactionError
		if errors.As(err, &terr) && terr.Code == tablesdk.CodeNotFound {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// rowInput is the writable row shape accepted by the API. Property
// values use plain JSON types; numbers arrive as doubles.
type rowInput struct {
	PartitionKey string         `json:"partitionKey"`
	RowKey       string         `json:"rowKey"`
	ETag         string         `json:"etag,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

func (in rowInput) toRow() (*table.Row, error) {
	row, err := table.NewRow(in.PartitionKey, in.RowKey)
	if err != nil {
		return nil, err
	}
	row.ETag = in.ETag
	for name, v := range in.Properties {
		p, err := tablesdk.ToNative(v)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		row.Set(name, p)
	}
	return row, nil
}

// rowJSON is the readable row shape returned by the API.
type rowJSON struct {
	PartitionKey string         `json:"partitionKey"`
	RowKey       string         `json:"rowKey"`
	Timestamp    time.Time      `json:"timestamp"`
	ETag         string         `json:"etag"`
	Properties   map[string]any `json:"properties"`
}

func toRowJSON(row *table.Row) rowJSON {
	props := make(map[string]any, len(row.Properties))
	for name, p := range row.Properties {
		props[name] = propertyJSON(p)
	}
	return rowJSON{
		PartitionKey: row.PartitionKey(),
		RowKey:       row.RowKey(),
		Timestamp:    row.Timestamp,
		ETag:         row.ETag,
		Properties:   props,
	}
}

func propertyJSON(p table.Property) any {
	switch v := p.(type) {
	case *table.PropertyString:
		return v.Value
	case *table.PropertyBool:
		return v.Value
	case *table.PropertyInt64:
		return v.Value
	case *table.PropertyUint64:
		return v.Value
	case *table.PropertyDouble:
		return v.Value
	case *table.PropertyBinary:
		return base64.StdEncoding.EncodeToString(v.Value)
	case *table.PropertyGUID:
		return v.Value.String()
	case *table.PropertyDateTime:
		return v.Value
	default:
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
