package tablestore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/acksell/nadella/aztables/table"
)

// Stored row envelope. Property kinds are tagged so the closed union
// survives the round trip.
type wireRow struct {
	PartitionKey string              `json:"pk"`
	RowKey       string              `json:"rk"`
	Timestamp    time.Time           `json:"ts"`
	ETag         string              `json:"etag"`
	Props        map[string]wireProp `json:"props,omitempty"`
}

type wireProp struct {
	Kind string `json:"t"`

	S   *string    `json:"s,omitempty"`
	B   *bool      `json:"b,omitempty"`
	I   *int64     `json:"i,omitempty"`
	U   *uint64    `json:"u,omitempty"`
	D   *float64   `json:"d,omitempty"`
	Bin []byte     `json:"bin,omitempty"`
	G   *uuid.UUID `json:"g,omitempty"`
	DT  *time.Time `json:"dt,omitempty"`
}

func encodeRow(r *table.Row) ([]byte, error) {
	w := wireRow{
		PartitionKey: r.PartitionKey(),
		RowKey:       r.RowKey(),
		Timestamp:    r.Timestamp,
		ETag:         r.ETag,
	}
	if len(r.Properties) > 0 {
		w.Props = make(map[string]wireProp, len(r.Properties))
	}
	for name, p := range r.Properties {
		wp, err := encodeProp(p)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		w.Props[name] = wp
	}
	return json.Marshal(w)
}

func encodeProp(p table.Property) (wireProp, error) {
	switch v := p.(type) {
	case *table.PropertyString:
		return wireProp{Kind: "S", S: &v.Value}, nil
	case *table.PropertyBool:
		return wireProp{Kind: "B", B: &v.Value}, nil
	case *table.PropertyInt64:
		return wireProp{Kind: "I64", I: &v.Value}, nil
	case *table.PropertyUint64:
		return wireProp{Kind: "U64", U: &v.Value}, nil
	case *table.PropertyDouble:
		return wireProp{Kind: "D", D: &v.Value}, nil
	case *table.PropertyBinary:
		return wireProp{Kind: "BIN", Bin: v.Value}, nil
	case *table.PropertyGUID:
		return wireProp{Kind: "G", G: &v.Value}, nil
	case *table.PropertyDateTime:
		return wireProp{Kind: "DT", DT: &v.Value}, nil
	default:
		return wireProp{}, fmt.Errorf("unsupported property kind %T", p)
	}
}

func decodeRow(data []byte) (*table.Row, error) {
	var w wireRow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	r, err := table.NewRow(w.PartitionKey, w.RowKey)
	if err != nil {
		return nil, err
	}
	r.Timestamp = w.Timestamp
	r.ETag = w.ETag
	for name, wp := range w.Props {
		p, err := decodeProp(wp)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		r.Set(name, p)
	}
	return r, nil
}

func decodeProp(wp wireProp) (table.Property, error) {
	switch wp.Kind {
	case "S":
		if wp.S == nil {
			return nil, fmt.Errorf("string property missing value")
		}
		return &table.PropertyString{Value: *wp.S}, nil
	case "B":
		if wp.B == nil {
			return nil, fmt.Errorf("bool property missing value")
		}
		return &table.PropertyBool{Value: *wp.B}, nil
	case "I64":
		if wp.I == nil {
			return nil, fmt.Errorf("int64 property missing value")
		}
		return &table.PropertyInt64{Value: *wp.I}, nil
	case "U64":
		if wp.U == nil {
			return nil, fmt.Errorf("uint64 property missing value")
		}
		return &table.PropertyUint64{Value: *wp.U}, nil
	case "D":
		if wp.D == nil {
			return nil, fmt.Errorf("double property missing value")
		}
		return &table.PropertyDouble{Value: *wp.D}, nil
	case "BIN":
		return &table.PropertyBinary{Value: wp.Bin}, nil
	case "G":
		if wp.G == nil {
			return nil, fmt.Errorf("guid property missing value")
		}
		return &table.PropertyGUID{Value: *wp.G}, nil
	case "DT":
		if wp.DT == nil {
			return nil, fmt.Errorf("datetime property missing value")
		}
		return &table.PropertyDateTime{Value: *wp.DT}, nil
	default:
		return nil, fmt.Errorf("unknown property kind %q", wp.Kind)
	}
}
