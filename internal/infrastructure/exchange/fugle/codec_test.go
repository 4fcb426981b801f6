package fugle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotewatch/internal/application/port"
)

func TestDecodeMalformedFramesNeverFail(t *testing.T) {
	frames := []string{
		``,
		`not json`,
		`{"event":`,
		`[1,2,3]`,
		`{"event":"subscribed","data":"oops"}`,
		`{"event":"data","channel":"trades","data":{"price":"abc"}}`,
		`{"event":"data","channel":"aggregates","data":[1]}`,
		`{"event":"data","channel":"weird","data":{"price":{}}}`,
		`{"event":"heartbeat","data":{"time":"x"}}`,
		`{"event":"whatever"}`,
		`{"event":"snapshot"}`,
	}
	for _, f := range frames {
		ev := Decode([]byte(f))
		require.NotNil(t, ev, f)
		e, ok := ev.(port.ErrorEvent)
		require.True(t, ok, "frame %q decoded to %T", f, ev)
		assert.True(t, errors.Is(e.Err, port.ErrProtocol), f)
		assert.NotEmpty(t, e.Message)
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	ev := Decode([]byte(`{"event":"bogus","data":{}}`))
	e, ok := ev.(port.ErrorEvent)
	require.True(t, ok)
	assert.Contains(t, e.Message, "unknown message type")
}

func TestDecodeControlEvents(t *testing.T) {
	ev := Decode([]byte(`{"event":"authenticated","data":{"message":"Authenticated successfully"}}`))
	assert.Equal(t, port.AuthenticatedEvent{Message: "Authenticated successfully"}, ev)

	ev = Decode([]byte(`{"event":"error","data":{"message":"Invalid API key"}}`))
	e, ok := ev.(port.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "Invalid API key", e.Message)

	ev = Decode([]byte(`{"event":"heartbeat","data":{"time":"1685338200000000"}}`))
	assert.Equal(t, port.HeartbeatEvent{Time: 1685338200000000}, ev)

	ev = Decode([]byte(`{"event":"pong","data":{"time":1685338200000000,"state":"auto_ping"}}`))
	assert.Equal(t, port.PongEvent{Time: 1685338200000000, State: "auto_ping"}, ev)
}

func TestDecodeAckShapes(t *testing.T) {
	ev := Decode([]byte(`{"event":"subscribed","data":{"id":"a1","channel":"trades","symbol":"2330"}}`))
	sub, ok := ev.(port.SubscribedEvent)
	require.True(t, ok)
	single, ok := sub.Ack.(port.SingleAck)
	require.True(t, ok)
	assert.Equal(t, port.AckRecord{ID: "a1", Channel: "trades", Symbol: "2330"}, single.Item)

	ev = Decode([]byte(`{"event":"unsubscribed","data":[{"id":"a1","channel":"trades","symbol":"2330"},{"id":"a2","channel":"trades","symbol":"2317"}]}`))
	unsub, ok := ev.(port.UnsubscribedEvent)
	require.True(t, ok)
	many, ok := unsub.Ack.(port.ManyAck)
	require.True(t, ok)
	assert.Len(t, many.Items, 2)
	assert.Len(t, unsub.Ack.Records(), 2)

	ev = Decode([]byte(`{"event":"subscriptions","data":[{"id":"a1","channel":"aggregates","symbol":"2330"}]}`))
	list, ok := ev.(port.SubscriptionsEvent)
	require.True(t, ok)
	assert.Len(t, list.Records, 1)
}

func TestDecodeDataDispatch(t *testing.T) {
	cases := []struct {
		frame string
		kind  port.EventKind
	}{
		{`{"event":"data","channel":"trades","data":{"symbol":"2330","price":505,"volume":10,"time":"09:00:00"}}`, port.KindTrade},
		{`{"event":"data","channel":"candles","data":{"symbol":"2330","open":1,"high":2,"low":0.5,"close":1.5,"volume":3,"time":"09:01:00"}}`, port.KindCandle},
		{`{"event":"data","channel":"books","data":{"symbol":"2330","bids":[{"price":504,"volume":1}],"asks":[],"time":"09:00:00"}}`, port.KindBook},
		{`{"event":"data","channel":"aggregates","data":{"symbol":"2330","lastPrice":505,"change":5,"changePercent":1,"total":{"tradeVolume":100},"lastUpdated":1}}`, port.KindAggregate},
		{`{"event":"data","channel":"indices","data":{"symbol":"IX0001","price":17000,"change":10,"changePercent":0.1,"time":"09:00:00"}}`, port.KindIndex},
		{`{"event":"data","channel":"odd","data":{"symbol":"2330","price":505,"size":1,"time":1}}`, port.KindSnapshot},
		{`{"event":"snapshot","data":{"symbol":"2330","lastPrice":505,"total":{"tradeVolume":100},"lastUpdated":1}}`, port.KindAggregate},
	}
	for _, c := range cases {
		ev := Decode([]byte(c.frame))
		assert.Equal(t, c.kind, ev.Kind(), c.frame)
	}
}

func TestDecodeTradeNumericTime(t *testing.T) {
	ev := Decode([]byte(`{"event":"data","channel":"trades","data":{"symbol":"2330","price":505,"volume":10,"time":1685338200000000}}`))
	tr, ok := ev.(port.TradeEvent)
	require.True(t, ok)
	assert.Equal(t, 505.0, tr.Data.Price)
	assert.Len(t, tr.Data.Time, len("15:04:05"))
}

func TestDecodeInlinePayload(t *testing.T) {
	ev := Decode([]byte(`{"event":"data","channel":"trades","symbol":"2317","price":104,"volume":1,"time":"09:00:00"}`))
	tr, ok := ev.(port.TradeEvent)
	require.True(t, ok)
	assert.Equal(t, "2317", tr.Data.Symbol)
}

func TestEncodeWireShapes(t *testing.T) {
	cases := []struct {
		msg  port.ControlMessage
		want string
	}{
		{port.AuthMessage{APIKey: "k"}, `{"event":"auth","data":{"apikey":"k"}}`},
		{port.SubscribeMessage{Channel: "trades", Symbols: []string{"2330", "2317"}}, `{"event":"subscribe","data":{"channel":"trades","symbols":["2330","2317"]}}`},
		{port.SubscribeMessage{Channel: "books", Symbol: "2330", IntradayOddLot: true}, `{"event":"subscribe","data":{"channel":"books","symbol":"2330","intradayOddLot":true}}`},
		{port.UnsubscribeMessage{IDs: []string{"a", "b"}}, `{"event":"unsubscribe","data":{"ids":["a","b"]}}`},
		{port.UnsubscribeMessage{ID: "a"}, `{"event":"unsubscribe","data":{"id":"a"}}`},
		{port.PingMessage{State: "auto_ping"}, `{"event":"ping","data":{"state":"auto_ping"}}`},
		{port.PingMessage{}, `{"event":"ping","data":{}}`},
		{port.SubscriptionsMessage{}, `{"event":"subscriptions"}`},
	}
	for _, c := range cases {
		b, err := Encode(c.msg)
		require.NoError(t, err)
		assert.JSONEq(t, c.want, string(b))
	}
}

func TestEncodeDecodeControlSymmetry(t *testing.T) {
	msgs := []port.ControlMessage{
		port.AuthMessage{APIKey: "secret"},
		port.SubscribeMessage{Channel: "aggregates", Symbols: []string{"2330", "2454"}},
		port.SubscribeMessage{Channel: "trades", Symbol: "2317", IntradayOddLot: true},
		port.UnsubscribeMessage{IDs: []string{"x1", "x2"}},
		port.UnsubscribeMessage{ID: "x3"},
		port.PingMessage{State: "heartbeat"},
		port.SubscriptionsMessage{},
	}
	for _, m := range msgs {
		b, err := Encode(m)
		require.NoError(t, err)
		back, err := DecodeControl(b)
		require.NoError(t, err)
		assert.Equal(t, m.EventName(), back.EventName())
		assert.Equal(t, m, back)
	}
}
