package report

import (
	"encoding/json"
	"io"
	"math/big"
)

// summary is the machine-readable form of a Report. Field names are part of
// the tool's output contract; do not rename them.
type summary struct {
	RPC             string            `json:"rpc"`
	ChainID         *big.Int          `json:"chain_id"`
	Address         string            `json:"address"`
	FromBlock       uint64            `json:"from_block"`
	ToBlock         uint64            `json:"to_block"`
	LogsFetched     int               `json:"logs_fetched"`
	CountsByTopic   map[string]uint64 `json:"counts_by_topic"`
	CountsByName    map[string]uint64 `json:"counts_by_name"`
	UnknownTopics   map[string]uint64 `json:"unknown_topics"`
	RequiredEvents  []string          `json:"required_events"`
	MissingRequired []string          `json:"missing_required"`
	ElapsedSeconds  float64           `json:"elapsed_seconds"`
}

// WriteJSON renders the machine-readable summary as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	out := summary{
		RPC:             r.RPCURL,
		ChainID:         r.ChainID,
		Address:         r.Address.Hex(),
		FromBlock:       r.FromBlock,
		ToBlock:         r.ToBlock,
		LogsFetched:     r.LogsFetched,
		CountsByTopic:   r.CountsByTopic,
		CountsByName:    r.CountsByName,
		UnknownTopics:   r.UnknownTopics,
		RequiredEvents:  r.RequiredEvents,
		MissingRequired: r.MissingRequired,
		ElapsedSeconds:  r.ElapsedSeconds(),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
