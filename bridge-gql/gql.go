// Package bridgegql exposes the bridge's readings over GraphQL, with a
// playground attached for ad-hoc queries against a running bridge.
package bridgegql

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Timestamp is an epoch-milliseconds scalar. Clients may send it as a
// string or a number; it is always serialized as a string so values
// survive JSON number precision limits.
type Timestamp int64

func (Timestamp) ImplementsGraphQLType(name string) bool {
	return name == "Timestamp"
}

func (t *Timestamp) UnmarshalGraphQL(input interface{}) error {
	switch v := input.(type) {
	case string:
		millis, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("unable to parse timestamp %q", v)
		}
		*t = Timestamp(millis)
	case int32:
		*t = Timestamp(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("unable to parse timestamp %v", v)
		}
		*t = Timestamp(v)
	default:
		return fmt.Errorf("unable to parse timestamp %v", input)
	}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(t), 10))
}
