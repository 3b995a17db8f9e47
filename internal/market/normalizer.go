// Package market reconstructs a consistent market view from the exchange
// push stream: message normalization, a local top-of-book replica, and
// per-second candle aggregation.
package market

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// Event is the decoded union returned by Normalizer.Normalize. Exactly one of
// the pointer fields is non-nil; all nil means the message was unrecognized
// and has been counted.
type Event struct {
	Trade     *domain.TradeEvent
	Depth     *domain.DepthEvent
	MarkPrice *domain.MarkPriceEvent
}

// combinedMessage is the multiplexed-stream envelope:
// {"stream":"btcusdc@aggTrade","data":{...}}.
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type aggTradeMsg struct {
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
	IsMaker   bool   `json:"m"`
}

type depthMsg struct {
	Symbol        string     `json:"s"`
	EventTime     int64      `json:"E"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

type markPriceMsg struct {
	Symbol      string `json:"s"`
	EventTime   int64  `json:"E"`
	MarkPrice   string `json:"p"`
	FundingRate string `json:"r"`
}

// Normalizer decodes raw push messages into the internal event union. It is a
// pure decoder: the only state it keeps is a counter of dropped messages.
type Normalizer struct {
	unrecognized atomic.Int64
}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Unrecognized returns the number of messages dropped so far.
func (n *Normalizer) Unrecognized() int64 {
	return n.unrecognized.Load()
}

// Normalize decodes one raw message. Unrecognized or malformed payloads are
// counted and returned as a zero Event; they are never an error, since a
// single bad message must not tear down the stream.
func (n *Normalizer) Normalize(raw []byte) Event {
	var env combinedMessage
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Data) == 0 {
		n.unrecognized.Add(1)
		return Event{}
	}

	switch {
	case strings.Contains(env.Stream, "@aggTrade"):
		return n.parseTrade(env.Data)
	case strings.Contains(env.Stream, "@depth"):
		return n.parseDepth(env.Data)
	case strings.Contains(env.Stream, "@markPrice"):
		return n.parseMarkPrice(env.Data)
	default:
		n.unrecognized.Add(1)
		return Event{}
	}
}

func (n *Normalizer) parseTrade(data json.RawMessage) Event {
	var m aggTradeMsg
	if err := json.Unmarshal(data, &m); err != nil {
		n.unrecognized.Add(1)
		return Event{}
	}
	price, err1 := strconv.ParseFloat(m.Price, 64)
	qty, err2 := strconv.ParseFloat(m.Quantity, 64)
	if err1 != nil || err2 != nil || price <= 0 || qty <= 0 {
		n.unrecognized.Add(1)
		return Event{}
	}
	return Event{Trade: &domain.TradeEvent{
		Symbol:        m.Symbol,
		Price:         price,
		Quantity:      qty,
		SellerIsMaker: m.IsMaker,
		Time:          time.UnixMilli(m.TradeTime),
		EpochMs:       m.TradeTime,
	}}
}

func (n *Normalizer) parseDepth(data json.RawMessage) Event {
	var m depthMsg
	if err := json.Unmarshal(data, &m); err != nil {
		n.unrecognized.Add(1)
		return Event{}
	}
	return Event{Depth: &domain.DepthEvent{
		Symbol:        m.Symbol,
		Bids:          parseLevels(m.Bids),
		Asks:          parseLevels(m.Asks),
		FirstUpdateID: m.FirstUpdateID,
		FinalUpdateID: m.FinalUpdateID,
		Time:          time.UnixMilli(m.EventTime),
	}}
}

func (n *Normalizer) parseMarkPrice(data json.RawMessage) Event {
	var m markPriceMsg
	if err := json.Unmarshal(data, &m); err != nil {
		n.unrecognized.Add(1)
		return Event{}
	}
	mark, _ := strconv.ParseFloat(m.MarkPrice, 64)
	funding, _ := strconv.ParseFloat(m.FundingRate, 64)
	return Event{MarkPrice: &domain.MarkPriceEvent{
		Symbol:      m.Symbol,
		MarkPrice:   mark,
		FundingRate: funding,
		Time:        time.UnixMilli(m.EventTime),
	}}
}

// parseLevels converts [["price","qty"],...] pairs. Malformed entries are
// skipped rather than failing the whole event.
func parseLevels(raw [][]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		price, err1 := strconv.ParseFloat(pair[0], 64)
		qty, err2 := strconv.ParseFloat(pair[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels
}
