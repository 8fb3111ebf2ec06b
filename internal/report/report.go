package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/compose-network/token-bridge/internal/events"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	// Report is the outcome of one simulated run.
	Report struct {
		Scenario string             `json:"scenario"`
		Mode     string             `json:"mode"`
		Steps    []Step             `json:"steps"`
		Balances []Balance          `json:"balances,omitempty"`
		Events   []Event            `json:"events"`
		Metrics  map[string]float64 `json:"metrics,omitempty"`
	}

	Step struct {
		Index  int    `json:"index"`
		Action string `json:"action"`
		OK     bool   `json:"ok"`
		Error  string `json:"error,omitempty"`
		// Set for steps that sent a message.
		MsgHash *common.Hash `json:"msg_hash,omitempty"`
		Nonce   *uint64      `json:"nonce,omitempty"`
	}

	Balance struct {
		Chain   string `json:"chain"`
		Asset   string `json:"asset"`
		Account string `json:"account"`
		Amount  string `json:"amount"`
	}

	Event struct {
		Seq     uint64            `json:"seq"`
		Emitter string            `json:"emitter"`
		Name    string            `json:"name"`
		Fields  map[string]string `json:"fields"`
		// L1 events that have an ABI also carry their encoded log.
		Topics []common.Hash  `json:"topics,omitempty"`
		Data   *hexutil.Bytes `json:"data,omitempty"`
	}
)

// Failed counts the steps that returned an error.
func (r Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.OK {
			n++
		}
	}
	return n
}

// FromEvents renders the records of an event log.
func FromEvents(records []events.Record) ([]Event, error) {
	out := make([]Event, 0, len(records))
	for _, rec := range records {
		ev := Event{Seq: rec.Seq, Emitter: rec.Emitter, Name: rec.Event.Name(), Fields: make(map[string]string)}
		for _, f := range rec.Event.Fields() {
			ev.Fields[f.Name] = FormatValue(f.Value)
		}

		if common.IsHexAddress(rec.Emitter) {
			log, err := events.EncodeLog(common.HexToAddress(rec.Emitter), rec.Event)
			switch {
			case err == nil:
				data := hexutil.Bytes(log.Data)
				ev.Topics, ev.Data = log.Topics, &data
			case !errors.Is(err, events.ErrNoABI):
				return nil, fmt.Errorf("failed to encode %s: %w", ev.Name, err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// FormatValue renders an event argument. Numbers are decimal.
func FormatValue(v any) string {
	switch x := v.(type) {
	case *uint256.Int:
		if x == nil {
			return "0"
		}
		return x.Dec()
	case []*uint256.Int:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = e.Dec()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case common.Address:
		return x.Hex()
	case common.Hash:
		return x.Hex()
	case []byte:
		return hexutil.Encode(x)
	default:
		return fmt.Sprint(v)
	}
}

// FromGatherer flattens counters and gauges into name{labels} -> value.
func FromGatherer(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}
	out := make(map[string]float64)
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			default:
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			sort.Strings(labels)
			key := fam.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}
			out[key] = value
		}
	}
	return out, nil
}
