package coordinator

import (
	"encoding/json"
	"time"
)

// resultEnvelope is the JSON shape written to ResultArtifact:
// {stored_at, prover_response}, with prover_response preserved
// byte-identical to what the prover delivered (L1).
type resultEnvelope struct {
	StoredAt       time.Time       `json:"stored_at"`
	ProverResponse json.RawMessage `json:"prover_response"`
}

func marshalResultEnvelope(e resultEnvelope) ([]byte, error) {
	return json.Marshal(e)
}
