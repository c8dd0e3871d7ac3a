package wire

import (
	"encoding/json"
	"testing"
)

func TestExecutionReportToOrderUsesLiveClientIDWhenNotCanceled(t *testing.T) {
	raw := []byte(`{
		"e":"executionReport","E":1700000000000,"s":"BTCUSDT",
		"c":"100","C":"",
		"S":"BUY","o":"LIMIT","f":"GTC","q":"1.00000000","p":"50000.00000000",
		"X":"FILLED","i":12345,"l":"1.00000000","z":"1.00000000","L":"50000.00000000",
		"T":1700000000500,"w":false,"m":true
	}`)
	var r ExecutionReport
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatal(err)
	}
	order := r.ToOrder()
	if order.InternalID != 100 {
		t.Fatalf("internal id = %d, want 100", order.InternalID)
	}
	if order.State != StateFilled {
		t.Fatalf("state = %s", order.State)
	}
}

func TestExecutionReportToOrderUsesOriginalClientIDWhenCanceled(t *testing.T) {
	raw := []byte(`{
		"e":"executionReport","E":1700000000000,"s":"BTCUSDT",
		"c":"","C":"200",
		"S":"SELL","o":"LIMIT","f":"GTC","q":"1.00000000","p":"50000.00000000",
		"X":"CANCELED","i":12345,"l":"0","z":"0","L":"0",
		"T":1700000000500,"w":false,"m":false
	}`)
	var r ExecutionReport
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatal(err)
	}
	order := r.ToOrder()
	if order.InternalID != 200 {
		t.Fatalf("internal id = %d, want 200 (should read from field C, not c)", order.InternalID)
	}
	if order.State != StateCanceled {
		t.Fatalf("state = %s", order.State)
	}
}

func TestOrderUpdateToOrderAlwaysUsesLiveClientID(t *testing.T) {
	raw := []byte(`{
		"e":"ORDER_TRADE_UPDATE","E":1700000000000,"T":1700000000400,
		"o":{
			"s":"BTCUSDT","c":"300","S":"BUY","o":"LIMIT","f":"GTC",
			"q":"1","p":"50000","X":"CANCELED","i":999,"l":"0","z":"0","L":"0",
			"T":1700000000400,"m":false
		}
	}`)
	var u OrderUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		t.Fatal(err)
	}
	order := u.ToOrder()
	if order.InternalID != 300 {
		t.Fatalf("internal id = %d, want 300 (futures has no CANCELED special case)", order.InternalID)
	}
}
