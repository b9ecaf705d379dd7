package signaling

import "encoding/json"

// NegotiationRouter relays opaque offers, answers and ICE candidates between
// two named participants. It never looks inside a payload.
type NegotiationRouter struct {
	conns *Connections
}

func NewNegotiationRouter(conns *Connections) *NegotiationRouter {
	return &NegotiationRouter{conns: conns}
}

func (r *NegotiationRouter) ForwardOffer(from, to ParticipantID, payload json.RawMessage) Outcome {
	return r.forward(TypeOffer, from, to, payload)
}

func (r *NegotiationRouter) ForwardAnswer(from, to ParticipantID, payload json.RawMessage) Outcome {
	return r.forward(TypeAnswer, from, to, payload)
}

func (r *NegotiationRouter) ForwardIceCandidate(from, to ParticipantID, payload json.RawMessage) Outcome {
	return r.forward(TypeICECandidate, from, to, payload)
}

// A target that already disconnected is a normal race, so the message is
// dropped without telling the sender.
func (r *NegotiationRouter) forward(kind string, from, to ParticipantID, payload json.RawMessage) Outcome {
	if !r.conns.Connected(to) {
		return Outcome{Err: ErrTargetUnreachable}
	}
	return Outcome{Deliveries: []Delivery{
		unicast(to, kind, SignalPayload{From: from, Payload: payload}),
	}}
}

// Bootstrap asks every existing member to initiate an offer toward the
// joiner. Existing members always initiate, so a pair never has two offers
// in flight.
func (r *NegotiationRouter) Bootstrap(joiner ParticipantID, existing []ParticipantID) []Delivery {
	out := make([]Delivery, 0, len(existing))
	for _, m := range existing {
		if m == joiner {
			continue
		}
		out = append(out, unicast(m, TypeOfferRequest, OfferRequestPayload{From: joiner}))
	}
	return out
}
