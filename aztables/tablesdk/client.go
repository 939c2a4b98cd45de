package tablesdk

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/acksell/nadella/aztables/table"
)

// batchThreshold is the row count below which the batched path is
// skipped: per-row calls are cheaper than batch bookkeeping at that
// scale.
const batchThreshold = 5

// Client is the entity-level facade over a row-store client: it
// transforms domain instances to rows and hands them to the batch
// orchestrator or the single-row path.
type Client struct {
	store TableClient
	log   zerolog.Logger
}

type Option func(*Client)

// WithLogger attaches a logger. The default client is silent.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

func New(store TableClient, opts ...Option) *Client {
	c := &Client{
		store: store,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type writeOpts struct {
	hardDelete bool
	noBatch    bool
}

type WriteOption func(*writeOpts)

// WithHardDelete physically removes rows even on soft-delete tables.
func WithHardDelete() WriteOption {
	return func(o *writeOpts) {
		o.hardDelete = true
	}
}

// WithoutBatching forces the per-row path regardless of size.
func WithoutBatching() WriteOption {
	return func(o *writeOpts) {
		o.noBatch = true
	}
}

// Write applies the intent to the given entities. All entities must
// share one mapped type. Transform failures (discovery, key
// derivation, coercion) abort the call before anything is submitted
// for the failing item; failures inside chunk submission are recovered
// and reported through the BatchResult instead.
func (c *Client) Write(ctx context.Context, intent Intent, entities []Entity, opts ...WriteOption) (BatchResult, error) {
	var o writeOpts
	for _, opt := range opts {
		opt(&o)
	}
	if len(entities) == 0 {
		return BatchResult{}, nil
	}

	md, err := MetadataOf(entities[0])
	if err != nil {
		return BatchResult{}, err
	}

	minimal := intent == IntentDelete
	rows := make([]*table.Row, 0, len(entities))
	for i, e := range entities {
		row, err := ToRow(md, e, minimal)
		if err != nil {
			return BatchResult{}, fmt.Errorf("entity %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	if !o.noBatch && len(rows) >= batchThreshold {
		return c.ExecuteBatch(ctx, md.Table, intent, rows, md.SoftDelete, o.hardDelete)
	}
	return c.writeRows(ctx, md.Table, intent, rows, md.SoftDelete, o.hardDelete)
}

// writeRows is the unbatched path: one store call per row, same
// result shape as the orchestrator.
func (c *Client) writeRows(ctx context.Context, tableName string, intent Intent, rows []*table.Row, softDelete, hardDelete bool) (BatchResult, error) {
	kind := actionKind(intent, softDelete, hardDelete)
	if intent == IntentDelete && kind == UpdateMergeRow {
		for _, r := range rows {
			r.Set(table.ColumnIsDeleted, &table.PropertyBool{Value: true})
		}
	}

	var res BatchResult
	for _, r := range rows {
		err := c.store.Submit(ctx, tableName, Action{Kind: kind, Row: r})
		if err == nil {
			res.Passed++
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res, err
		}
		res.Failed++
		res.Messages = append(res.Messages, fmt.Sprintf(
			"partition %s: row %s failed: %v", r.PartitionKey(), r.RowKey(), err))
	}
	return res, nil
}

// Query runs a filtered read against E's table and unmarshals every
// matching row. E must implement Entity on the value receiver. A top
// of zero returns everything the filter matches.
func Query[E Entity](ctx context.Context, c *Client, params FilterParams, top int) ([]E, error) {
	var prototype E
	md, err := MetadataOf(prototype)
	if err != nil {
		return nil, err
	}

	rows, err := c.store.Query(ctx, QueryRequest{
		Table:  md.Table,
		Filter: BuildFilter(md.SoftDelete, params),
		Top:    top,
	})
	if err != nil {
		return nil, err
	}

	out := make([]E, 0, len(rows))
	for _, row := range rows {
		var e E
		if err := FromRow(md, row, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
