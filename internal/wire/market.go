package wire

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookTickerEvent is a Binance "@bookTicker" push: best bid/ask, passed
// through unchanged to subscribers.
type BookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

func (e BookTickerEvent) ParseBidPrice() (decimal.Decimal, error) { return decimal.NewFromString(e.BidPrice) }
func (e BookTickerEvent) ParseAskPrice() (decimal.Decimal, error) { return decimal.NewFromString(e.AskPrice) }
func (e BookTickerEvent) ParseBidQty() (decimal.Decimal, error)   { return decimal.NewFromString(e.BidQty) }
func (e BookTickerEvent) ParseAskQty() (decimal.Decimal, error)   { return decimal.NewFromString(e.AskQty) }

// Depth20Event is a Binance "@depth20" partial book snapshot. Symbol is not
// in the payload and must be recovered from the stream name by the caller.
type Depth20Event struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
	Symbol       string     `json:"-"`
}

// CanonicalDepth is the depth frame the way subscribers receive it on the
// wire: symbol restored, a millisecond receive timestamp attached, and
// zero-qty levels dropped (see Depth20Event.Canonicalize).
type CanonicalDepth struct {
	Symbol       string           `json:"symbol"`
	ReceivedAtMS int64            `json:"ts"`
	LastUpdateID int64            `json:"lastUpdateId"`
	Bids         []OrderbookLevel `json:"bids"`
	Asks         []OrderbookLevel `json:"asks"`
}

func (e Depth20Event) Canonicalize(receivedAt time.Time) (CanonicalDepth, error) {
	bids, err := ParseOrderbookLevels(e.Bids)
	if err != nil {
		return CanonicalDepth{}, err
	}
	asks, err := ParseOrderbookLevels(e.Asks)
	if err != nil {
		return CanonicalDepth{}, err
	}
	return CanonicalDepth{
		Symbol:       e.Symbol,
		ReceivedAtMS: receivedAt.UnixMilli(),
		LastUpdateID: e.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

// OrderbookLevel is one price/quantity pair of a book side.
type OrderbookLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ParseOrderbookLevels parses raw [price, qty] string pairs, skipping
// zero-quantity levels (a removal marker in diff-depth streams, and
// meaningless in a partial snapshot).
func ParseOrderbookLevels(raw [][]string) ([]OrderbookLevel, error) {
	levels := make([]OrderbookLevel, 0, len(raw))
	for _, r := range raw {
		if len(r) < 2 {
			continue
		}
		price, err := decimal.NewFromString(r[0])
		if err != nil {
			return nil, err
		}
		qty, err := decimal.NewFromString(r[1])
		if err != nil {
			return nil, err
		}
		if qty.IsZero() {
			continue
		}
		levels = append(levels, OrderbookLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

// KlineEvent is a Binance "@kline_<interval>" push.
type KlineEvent struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Kline     KlineData  `json:"k"`
}

type KlineData struct {
	StartTime          int64  `json:"t"`
	CloseTime          int64  `json:"T"`
	Symbol             string `json:"s"`
	Interval           string `json:"i"`
	Open               string `json:"o"`
	Close              string `json:"c"`
	High               string `json:"h"`
	Low                string `json:"l"`
	Volume             string `json:"v"`
	NumberOfTrades     int64  `json:"n"`
	IsClosed           bool   `json:"x"`
	QuoteVolume        string `json:"q"`
}

// CanonicalKline is the normalized shape Market.Process fans out for kline
// streams: {time, start_time, symbol, stream, interval, OHLCV, …, is_closed}.
type CanonicalKline struct {
	Time      int64           `json:"time"`
	StartTime int64           `json:"start_time"`
	Symbol    string          `json:"symbol"`
	Stream    string          `json:"stream"`
	Interval  string          `json:"interval"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Trades    int64           `json:"trades"`
	IsClosed  bool            `json:"is_closed"`
}

func (e KlineEvent) Canonicalize(stream string) CanonicalKline {
	k := e.Kline
	return CanonicalKline{
		Time:      e.EventTime,
		StartTime: k.StartTime,
		Symbol:    e.Symbol,
		Stream:    stream,
		Interval:  k.Interval,
		Open:      parseDecimalOrZero(k.Open),
		High:      parseDecimalOrZero(k.High),
		Low:       parseDecimalOrZero(k.Low),
		Close:     parseDecimalOrZero(k.Close),
		Volume:    parseDecimalOrZero(k.Volume),
		Trades:    k.NumberOfTrades,
		IsClosed:  k.IsClosed,
	}
}

// AggTradeEvent is a Binance "@aggTrade" push.
type AggTradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	AggTradeID   int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

func (e AggTradeEvent) ParsePrice() (decimal.Decimal, error)    { return decimal.NewFromString(e.Price) }
func (e AggTradeEvent) ParseQuantity() (decimal.Decimal, error) { return decimal.NewFromString(e.Quantity) }
func (e AggTradeEvent) Timestamp() time.Time                    { return time.UnixMilli(e.TradeTime) }

// NormalizeStreamSuffix rewrites the "{kind}[:{param}]" portion of a
// client-facing "{symbol}@{kind}[:{param}]" stream token into the exact
// stream name Binance expects: "kline:1D" -> "kline_1D", "bbo" ->
// "bookTicker", "depth:100" -> "depth20@100ms".
func NormalizeStreamSuffix(symbol, kind string) string {
	switch {
	case kind == "bbo":
		return symbol + "@bookTicker"
	case len(kind) >= 6 && kind[:6] == "kline:":
		return symbol + "@kline_" + kind[6:]
	case len(kind) >= 6 && kind[:6] == "depth:":
		return symbol + "@depth20@" + kind[6:] + "ms"
	default:
		return symbol + "@" + kind
	}
}
