// Package sigmap derives event topic hashes from ABI event definitions.
//
// The first topic of an emitted log equals Keccak-256 of the event's
// canonical signature "Name(type1,type2,...)", so a map keyed by that hash
// classifies observed logs back to their declared events.
package sigmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/casks-mutters/event-soundness/internal/logger"
)

// ErrLoad marks an ABI file that could not be read or is not a JSON array.
var ErrLoad = errors.New("abi load failed")

// EventInput is a single parameter of an event definition.
type EventInput struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed"`
}

// SignatureEntry describes one event from the ABI together with its
// derived canonical signature and topic hash.
type SignatureEntry struct {
	Topic     ethcommon.Hash
	Name      string
	Signature string
	Inputs    []EventInput
}

// SignatureMap maps an event's topic hash to its signature entry.
// Built once per run, read-only afterwards.
type SignatureMap map[ethcommon.Hash]SignatureEntry

// rawDefinition keeps inputs raw so that a missing, null or non-list inputs
// field can be told apart from an empty one.
type rawDefinition struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Inputs json.RawMessage `json:"inputs"`
}

// LoadFile reads an ABI JSON file and builds the signature map from its
// event definitions. The file must contain a top-level JSON array.
func LoadFile(path string, log *logger.Logger) (SignatureMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	var defs []json.RawMessage
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("%w: ABI must be a JSON array: %v", ErrLoad, err)
	}

	return Build(defs, log), nil
}

// Build constructs the signature map from raw ABI definitions.
//
// Definitions that are not events, have no name, or have a missing, null
// or non-list inputs field are skipped silently. A definition whose input
// entries lack a "type" field is skipped with a warning, since its
// canonical signature would be meaningless.
func Build(defs []json.RawMessage, log *logger.Logger) SignatureMap {
	m := make(SignatureMap)

	for _, raw := range defs {
		var def rawDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			continue
		}
		if def.Type != "event" || def.Name == "" || def.Inputs == nil {
			continue
		}

		// a pointer target leaves inputs nil for a JSON null, which does
		// not qualify any more than a missing field does
		var inputs *[]EventInput
		if err := json.Unmarshal(def.Inputs, &inputs); err != nil || inputs == nil {
			continue
		}

		entry, ok := newEntry(def.Name, *inputs)
		if !ok {
			log.Warnf("skipping event %q: input entry without a type field", def.Name)
			continue
		}

		// collision is cryptographically implausible; last writer wins
		m[entry.Topic] = entry
	}

	return m
}

// newEntry derives the canonical signature and topic hash for an event.
// ok is false when any input lacks its type.
func newEntry(name string, inputs []EventInput) (SignatureEntry, bool) {
	sig := name + "("
	for i, in := range inputs {
		if in.Type == "" {
			return SignatureEntry{}, false
		}
		if i > 0 {
			sig += ","
		}
		sig += in.Type
	}
	sig += ")"

	return SignatureEntry{
		Topic:     crypto.Keccak256Hash([]byte(sig)),
		Name:      name,
		Signature: sig,
		Inputs:    inputs,
	}, true
}
