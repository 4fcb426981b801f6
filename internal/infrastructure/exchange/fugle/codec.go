package fugle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"quotewatch/internal/application/port"
	"quotewatch/internal/domain/model"
	"quotewatch/internal/domain/quote"
	"quotewatch/internal/infrastructure/exchange"
)

// Channels
const (
	ChannelTrades     = "trades"
	ChannelCandles    = "candles"
	ChannelBooks      = "books"
	ChannelAggregates = "aggregates"
	ChannelIndices    = "indices"
)

// ========== Outbound ==========

type frameOut struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type authData struct {
	APIKey string `json:"apikey"`
}

type subscribeData struct {
	Channel        string   `json:"channel"`
	Symbols        []string `json:"symbols,omitempty"`
	Symbol         string   `json:"symbol,omitempty"`
	IntradayOddLot bool     `json:"intradayOddLot,omitempty"`
}

type unsubscribeData struct {
	IDs []string `json:"ids,omitempty"`
	ID  string   `json:"id,omitempty"`
}

type pingData struct {
	State string `json:"state,omitempty"`
}

// Encode 控制消息 -> JSON 文本帧
func Encode(msg port.ControlMessage) ([]byte, error) {
	f := frameOut{Event: msg.EventName()}
	switch m := msg.(type) {
	case port.AuthMessage:
		f.Data = authData{APIKey: m.APIKey}
	case port.SubscribeMessage:
		f.Data = subscribeData{Channel: m.Channel, Symbols: m.Symbols, Symbol: m.Symbol, IntradayOddLot: m.IntradayOddLot}
	case port.UnsubscribeMessage:
		f.Data = unsubscribeData{IDs: m.IDs, ID: m.ID}
	case port.PingMessage:
		f.Data = pingData{State: m.State}
	case port.SubscriptionsMessage:
	default:
		return nil, fmt.Errorf("encode: unsupported control message %T", msg)
	}
	return json.Marshal(f)
}

// DecodeControl 解析出站控制帧，Encode 的逆操作（测试中校验客户端发出的帧）
func DecodeControl(frame []byte) (port.ControlMessage, error) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := exchange.ParseJSON(frame, &env); err != nil {
		return nil, err
	}
	switch env.Event {
	case "auth":
		var d authData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return port.AuthMessage{APIKey: d.APIKey}, nil
	case "subscribe":
		var d subscribeData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return port.SubscribeMessage{Channel: d.Channel, Symbols: d.Symbols, Symbol: d.Symbol, IntradayOddLot: d.IntradayOddLot}, nil
	case "unsubscribe":
		var d unsubscribeData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return port.UnsubscribeMessage{IDs: d.IDs, ID: d.ID}, nil
	case "ping":
		var d pingData
		if err := unmarshalData(env.Data, &d); err != nil {
			return nil, err
		}
		return port.PingMessage{State: d.State}, nil
	case "subscriptions":
		return port.SubscriptionsMessage{}, nil
	default:
		return nil, fmt.Errorf("unknown control event %q", env.Event)
	}
}

func unmarshalData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return exchange.ParseJSON(raw, v)
}

// ========== Inbound ==========

type frameIn struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type messageData struct {
	Message string `json:"message"`
}

type timeData struct {
	Time  flexInt `json:"time"`
	State string  `json:"state"`
}

// Decode 入站帧 -> Event。不会失败：无法解析的帧变成 ErrorEvent
func Decode(frame []byte) port.Event {
	var f frameIn
	if err := exchange.ParseJSON(frame, &f); err != nil {
		return protocolError("parse error", err)
	}

	switch f.Event {
	case "authenticated":
		var d messageData
		if err := unmarshalData(f.Data, &d); err != nil {
			return protocolError("parse error", err)
		}
		return port.AuthenticatedEvent{Message: d.Message}

	case "error":
		var d messageData
		if err := unmarshalData(f.Data, &d); err != nil {
			return protocolError("parse error", err)
		}
		return port.ErrorEvent{Message: d.Message, Err: fmt.Errorf("%w: %s", port.ErrProtocol, d.Message)}

	case "heartbeat":
		var d timeData
		if err := unmarshalData(f.Data, &d); err != nil {
			return protocolError("parse error", err)
		}
		return port.HeartbeatEvent{Time: int64(d.Time)}

	case "pong":
		var d timeData
		if err := unmarshalData(f.Data, &d); err != nil {
			return protocolError("parse error", err)
		}
		return port.PongEvent{Time: int64(d.Time), State: d.State}

	case "subscribed", "unsubscribed":
		ack, err := decodeAck(f.Data)
		if err != nil {
			return protocolError("parse error", err)
		}
		if f.Event == "subscribed" {
			return port.SubscribedEvent{Ack: ack}
		}
		return port.UnsubscribedEvent{Ack: ack}

	case "subscriptions":
		ack, err := decodeAck(f.Data)
		if err != nil {
			return protocolError("parse error", err)
		}
		return port.SubscriptionsEvent{Records: ack.Records()}

	case "data":
		payload := f.Data
		if len(bytes.TrimSpace(payload)) == 0 {
			payload = frame
		}
		return decodeData(f.Channel, payload)

	case "snapshot":
		var d model.AggregateData
		if err := exchange.ParseJSON(f.Data, &d); err != nil {
			return protocolError("parse error", err)
		}
		return port.AggregateEvent{Data: d}

	default:
		return port.ErrorEvent{
			Message: "unknown message type: " + f.Event,
			Err:     fmt.Errorf("%w: unknown message type %q", port.ErrProtocol, f.Event),
		}
	}
}

// decodeData 二级分派：data 帧按 channel 解析，未知 channel 按 snapshot 处理
func decodeData(channel string, payload []byte) port.Event {
	switch channel {
	case ChannelTrades:
		var w wireTrade
		if err := exchange.ParseJSON(payload, &w); err != nil {
			return protocolError("parse trades", err)
		}
		d := w.TradeData
		d.Time = string(w.Time)
		return port.TradeEvent{Data: d}

	case ChannelCandles:
		var w wireCandle
		if err := exchange.ParseJSON(payload, &w); err != nil {
			return protocolError("parse candles", err)
		}
		d := w.CandleData
		d.Time = string(w.Time)
		return port.CandleEvent{Data: d}

	case ChannelBooks:
		var w wireBook
		if err := exchange.ParseJSON(payload, &w); err != nil {
			return protocolError("parse books", err)
		}
		d := w.BookData
		d.Time = string(w.Time)
		return port.BookEvent{Data: d}

	case ChannelAggregates:
		var d model.AggregateData
		if err := exchange.ParseJSON(payload, &d); err != nil {
			return protocolError("parse aggregates", err)
		}
		return port.AggregateEvent{Data: d}

	case ChannelIndices:
		var w wireIndex
		if err := exchange.ParseJSON(payload, &w); err != nil {
			return protocolError("parse indices", err)
		}
		d := w.IndexData
		d.Time = string(w.Time)
		return port.IndexEvent{Data: d}

	default:
		var d model.SnapshotData
		if err := exchange.ParseJSON(payload, &d); err != nil {
			return protocolError("parse snapshot", err)
		}
		return port.SnapshotEvent{Data: d}
	}
}

// decodeAck 回执 data 为对象时得到 SingleAck，为数组时得到 ManyAck
func decodeAck(raw json.RawMessage) (port.Ack, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return port.ManyAck{}, nil
	}
	if raw[0] == '[' {
		var items []port.AckRecord
		if err := exchange.ParseJSON(raw, &items); err != nil {
			return nil, err
		}
		return port.ManyAck{Items: items}, nil
	}
	var item port.AckRecord
	if err := exchange.ParseJSON(raw, &item); err != nil {
		return nil, err
	}
	return port.SingleAck{Item: item}, nil
}

func protocolError(what string, err error) port.ErrorEvent {
	return port.ErrorEvent{
		Message: what + ": " + err.Error(),
		Err:     fmt.Errorf("%w: %s: %v", port.ErrProtocol, what, err),
	}
}

// ========== Wire helpers ==========

// flexTime 接受字符串或数字（微秒时间戳），统一成显示字符串
type flexTime string

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = flexTime(s)
		return nil
	}
	us, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("time: %w", err)
	}
	*t = flexTime(quote.FormatMicros(us))
	return nil
}

// flexInt 接受数字或数字字符串
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

type wireTrade struct {
	model.TradeData
	Time flexTime `json:"time"`
}

type wireCandle struct {
	model.CandleData
	Time flexTime `json:"time"`
}

type wireBook struct {
	model.BookData
	Time flexTime `json:"time"`
}

type wireIndex struct {
	model.IndexData
	Time flexTime `json:"time"`
}
