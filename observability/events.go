package observability

import (
	"math/big"

	"tokensyndicate/core/events"
	"tokensyndicate/core/types"
)

var valueFlows = map[string]struct {
	flow string
	attr string
}{
	"syndicate.deposit":          {flow: "deposit", attr: "amount"},
	"syndicate.donation":         {flow: "donation", attr: "amount"},
	"syndicate.refund":           {flow: "refund", attr: "amount"},
	"syndicate.purchase":         {flow: "purchase", attr: "payment"},
	"syndicate.bounty_withdrawn": {flow: "bounty", attr: "amount"},
}

// EventMetrics returns an emitter that feeds ledger events into the syndicate
// metrics registry.
func EventMetrics(m *SyndicateMetrics) events.Emitter {
	return events.EmitterFunc(func(evt events.Event) {
		if evt == nil {
			return
		}
		m.RecordEvent(evt.EventType())
		payload, ok := evt.(events.Payload)
		if !ok {
			return
		}
		rendered := payload.Event()
		if rendered == nil {
			return
		}
		if flow, ok := valueFlows[rendered.Type]; ok {
			m.RecordValue(flow.flow, parseAmount(rendered, flow.attr))
		}
		if rendered.Type == "syndicate.tokens_withdrawn" {
			m.RecordTokens(parseAmount(rendered, "units"))
		}
	})
}

func parseAmount(evt *types.Event, key string) *big.Int {
	value, ok := new(big.Int).SetString(evt.Attr(key), 10)
	if !ok {
		return nil
	}
	return value
}
