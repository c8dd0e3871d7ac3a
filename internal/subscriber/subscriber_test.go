package subscriber

import (
	"encoding/json"
	"testing"
)

func newRecordingSink() (Sink, *[][]byte) {
	var sent [][]byte
	return SinkFunc(func(payload []byte) error {
		sent = append(sent, payload)
		return nil
	}), &sent
}

func TestOnStrategyClientSubscribeExtendsSymbolSet(t *testing.T) {
	sink, _ := newRecordingSink()
	s := New(sink)
	s.OnStrategyClientSubscribe(1, 100, []string{"btcusdt@bookTicker", "ethusdt@bookTicker"})

	if !s.IsSubscribed("btcusdt@bookTicker") || !s.IsSubscribed("ethusdt@bookTicker") {
		t.Fatalf("symbols = %v, want both streams subscribed", s.Symbols())
	}
	if s.IsSubscribed("solusdt@bookTicker") {
		t.Fatal("unexpected subscription")
	}
}

func TestOnExchangeResponseRewritesIDAndForwards(t *testing.T) {
	sink, sent := newRecordingSink()
	s := New(sink)
	s.OnStrategyClientSubscribe(7, 42, []string{"btcusdt@bookTicker"})

	resp := json.RawMessage(`{"id":7,"status":200,"result":{"subscriptionId":7}}`)
	if err := s.OnExchangeResponse(resp); err != nil {
		t.Fatal(err)
	}

	if len(*sent) != 1 {
		t.Fatalf("sent = %d frames, want 1", len(*sent))
	}
	var out map[string]any
	if err := json.Unmarshal((*sent)[0], &out); err != nil {
		t.Fatal(err)
	}
	if id, _ := out["id"].(float64); int64(id) != 42 {
		t.Fatalf("id = %v, want 42", out["id"])
	}
}

func TestOnExchangeResponseIsOneShot(t *testing.T) {
	sink, sent := newRecordingSink()
	s := New(sink)
	s.OnStrategyClientSubscribe(7, 42, nil)

	resp := json.RawMessage(`{"id":7}`)
	_ = s.OnExchangeResponse(resp)
	_ = s.OnExchangeResponse(resp)

	if len(*sent) != 1 {
		t.Fatalf("sent = %d frames, want exactly 1 (id mapping is one-shot)", len(*sent))
	}
}

func TestOnExchangeResponseUnknownIDIsDropped(t *testing.T) {
	sink, sent := newRecordingSink()
	s := New(sink)

	resp := json.RawMessage(`{"id":999}`)
	if err := s.OnExchangeResponse(resp); err != nil {
		t.Fatal(err)
	}
	if len(*sent) != 0 {
		t.Fatalf("sent = %d frames, want 0 for an unrecognized upstream id", len(*sent))
	}
}

func TestForwardToStrategyClientSendsVerbatim(t *testing.T) {
	sink, sent := newRecordingSink()
	s := New(sink)

	payload := []byte(`{"stream":"btcusdt@bookTicker","data":{}}`)
	if err := s.ForwardToStrategyClient(payload); err != nil {
		t.Fatal(err)
	}
	if len(*sent) != 1 || string((*sent)[0]) != string(payload) {
		t.Fatalf("forwarded = %v, want verbatim payload", *sent)
	}
}
