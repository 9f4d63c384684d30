package model

import (
	"encoding/json"
	"fmt"
)

// Dataset collection names served by the engine's data endpoints.
const (
	DatasetStockyards    = "stockyards"
	DatasetOrders        = "orders"
	DatasetRakes         = "rakes"
	DatasetLoadingPoints = "loading_points"
	DatasetProducts      = "products"
	DatasetWagonTypes    = "wagon_types"
)

// Order status relevant to snapshots.
const OrderPending = "pending"

// Rake status relevant to snapshots.
const RakeAvailable = "available"

// Order is a read-only view of one freight order row.
type Order struct {
	ID             string  `json:"id"`
	OrderNumber    string  `json:"order_number"`
	ProductCode    string  `json:"product_code"`
	QuantityTonnes float64 `json:"quantity_tonnes"`
	Destination    string  `json:"destination"`
	Status         string  `json:"status"`
	Fields         Fields  `json:"-"`
}

// Rake is a read-only view of one rake row.
type Rake struct {
	ID                  string  `json:"id"`
	RakeNumber          string  `json:"rake_number"`
	WagonTypeCode       string  `json:"wagon_type_code"`
	NumWagons           int     `json:"num_wagons"`
	TotalCapacityTonnes float64 `json:"total_capacity_tonnes"`
	Status              string  `json:"status"`
	Fields              Fields  `json:"-"`
}

// Stockyard is a read-only view of one stockyard row.
type Stockyard struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Name           string  `json:"name"`
	Location       string  `json:"location"`
	CapacityTonnes float64 `json:"capacity_tonnes"`
	Fields         Fields  `json:"-"`
}

// ValueKind tags the scalar type held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
)

// Value is a tagged scalar for CSV-derived dataset columns whose shape
// is not known ahead of time.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

// Fields maps extra column names to tagged scalar values.
type Fields map[string]Value

// UnmarshalJSON decodes any JSON scalar into the tagged representation.
// Non-scalar values are rejected rather than carried as open maps.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Value{Kind: KindNull}
	case string:
		*v = Value{Kind: KindString, Str: t}
	case float64:
		*v = Value{Kind: KindNumber, Num: t}
	case bool:
		*v = Value{Kind: KindBool, Bool: t}
	default:
		return fmt.Errorf("unsupported dataset value %T", raw)
	}
	return nil
}

// MarshalJSON encodes the tagged scalar back to its JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}
