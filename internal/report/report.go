// Package report classifies fetched logs against a signature map and
// renders the audit result as text and optionally JSON.
package report

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"sort"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/casks-mutters/event-soundness/internal/sigmap"
)

// unknownLabel builds the synthetic name for a topic with no ABI match.
// It embeds the first 10 characters of the topic hex followed by an ellipsis,
// e.g. UNKNOWN(0xddf252ad…).
func unknownLabel(topic ethcommon.Hash) string {
	return "UNKNOWN(" + topic.Hex()[:10] + "…)"
}

// Params carries everything needed to build a Report.
type Params struct {
	RPCURL         string
	ChainID        *big.Int // nil when the node did not report one
	Address        ethcommon.Address
	FromBlock      uint64
	ToBlock        uint64
	SigMap         sigmap.SignatureMap
	Logs           []types.Log
	RequiredEvents []string // nil when no required-events file was given
	Elapsed        time.Duration
}

// Report is the aggregated audit result. It is built once and never
// mutated afterwards.
type Report struct {
	RPCURL          string
	ChainID         *big.Int
	Address         ethcommon.Address
	FromBlock       uint64
	ToBlock         uint64
	LogsFetched     int
	CountsByTopic   map[string]uint64
	CountsByName    map[string]uint64
	UnknownTopics   map[string]uint64
	RequiredEvents  []string
	MissingRequired []string
	Elapsed         time.Duration
}

// New classifies the logs against the signature map and builds the Report.
// The classification is a pure function of its inputs: building twice from
// the same inputs yields identical reports.
func New(p Params) *Report {
	countsByTopic := make(map[string]uint64)
	unknownTopics := make(map[string]uint64)
	presentNames := make(map[string]struct{})

	// The first topic identifies the event kind; logs without topics
	// (anonymous events carry data only) are not classifiable.
	for _, lg := range p.Logs {
		if len(lg.Topics) == 0 {
			continue
		}
		t0 := lg.Topics[0]
		countsByTopic[t0.Hex()]++

		if entry, ok := p.SigMap[t0]; ok {
			presentNames[entry.Name] = struct{}{}
		} else {
			unknownTopics[t0.Hex()]++
		}
	}

	countsByName := make(map[string]uint64)
	for topicHex, cnt := range countsByTopic {
		topic := ethcommon.HexToHash(topicHex)
		if entry, ok := p.SigMap[topic]; ok {
			countsByName[entry.Name] += cnt
		} else {
			countsByName[unknownLabel(topic)] += cnt
		}
	}

	// Synthetic UNKNOWN(...) names never satisfy a requirement: only names
	// resolved through the signature map count as present.
	missing := make([]string, 0)
	for _, req := range p.RequiredEvents {
		if _, ok := presentNames[req]; !ok {
			missing = append(missing, req)
		}
	}

	return &Report{
		RPCURL:          p.RPCURL,
		ChainID:         p.ChainID,
		Address:         p.Address,
		FromBlock:       p.FromBlock,
		ToBlock:         p.ToBlock,
		LogsFetched:     len(p.Logs),
		CountsByTopic:   countsByTopic,
		CountsByName:    countsByName,
		UnknownTopics:   unknownTopics,
		RequiredEvents:  p.RequiredEvents,
		MissingRequired: missing,
		Elapsed:         p.Elapsed,
	}
}

// Sound reports whether the audit found neither unknown topics nor missing
// required events.
func (r *Report) Sound() bool {
	return len(r.UnknownTopics) == 0 && len(r.MissingRequired) == 0
}

// ElapsedSeconds returns the elapsed time in seconds, rounded to 2 decimals.
func (r *Report) ElapsedSeconds() float64 {
	return math.Round(r.Elapsed.Seconds()*100) / 100
}

// WriteText renders the human-readable report.
func (r *Report) WriteText(w io.Writer) {
	fmt.Fprintf(w, "📰 Logs fetched: %d\n", r.LogsFetched)

	if len(r.CountsByName) > 0 {
		fmt.Fprintln(w, "📊 Event counts (by name):")
		names := make([]string, 0, len(r.CountsByName))
		for name := range r.CountsByName {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "   • %s: %d\n", name, r.CountsByName[name])
		}
	} else {
		fmt.Fprintln(w, "⚠️ No events observed in the given range.")
	}

	if len(r.UnknownTopics) > 0 {
		fmt.Fprintf(w, "🚩 Unknown topics (not in ABI): %d\n", len(r.UnknownTopics))
		topics := make([]string, 0, len(r.UnknownTopics))
		for topic := range r.UnknownTopics {
			topics = append(topics, topic)
		}
		sort.Strings(topics)
		const sampleSize = 10
		sample := topics[:min(sampleSize, len(topics))]
		suffix := ""
		if len(topics) > sampleSize {
			suffix = " ..."
		}
		fmt.Fprintf(w, "   sample: %s%s\n", strings.Join(sample, ", "), suffix)
	} else {
		fmt.Fprintln(w, "✅ No unknown event topics detected.")
	}

	if len(r.MissingRequired) > 0 {
		fmt.Fprintf(w, "❌ Missing required events: %s\n", strings.Join(r.MissingRequired, ", "))
	} else if r.RequiredEvents != nil {
		fmt.Fprintln(w, "✅ All required events were observed at least once.")
	}

	fmt.Fprintf(w, "⏱️ Completed in %.2fs\n", r.Elapsed.Seconds())
}
