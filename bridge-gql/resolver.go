package bridgegql

import (
	"github.com/hydrotel/hydrobridge/bridge"
	"github.com/hydrotel/hydrobridge/hydrometer"
)

type Reading struct {
	Ts          Timestamp
	TotalLiters float64
	FlowLmin    float64
}

func newReading(r hydrometer.Reading) Reading {
	return Reading{
		Ts:          Timestamp(r.Ts),
		TotalLiters: r.TotalLiters,
		FlowLmin:    r.FlowLmin,
	}
}

type HistoryArgs struct {
	From  *Timestamp
	To    *Timestamp
	Limit *int32
}

type Resolver struct {
	bridge *bridge.Bridge
}

func NewResolver(b *bridge.Bridge) *Resolver {
	return &Resolver{bridge: b}
}

func (r *Resolver) Current() *Reading {
	reading, ok := r.bridge.Current()
	if !ok {
		return nil
	}
	converted := newReading(reading)
	return &converted
}

func (r *Resolver) History(args HistoryArgs) []Reading {
	var from, to int64
	if args.From != nil {
		from = int64(*args.From)
	}
	if args.To != nil {
		to = int64(*args.To)
	}

	var limit int
	if args.Limit != nil {
		limit = int(*args.Limit)
	}

	readings := r.bridge.History(from, to, limit)
	converted := make([]Reading, 0, len(readings))
	for _, reading := range readings {
		converted = append(converted, newReading(reading))
	}
	return converted
}

func (r *Resolver) Degraded() bool {
	return r.bridge.Degraded()
}
