package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotewatch/internal/application/port"
)

func TestRegistryRecordResolveRemove(t *testing.T) {
	r := NewRegistry()
	r.Record("trades", "2330", "id-1")
	r.Record("aggregates", "2330", "id-2")

	id, ok := r.Resolve("trades", "2330")
	require.True(t, ok)
	assert.Equal(t, "id-1", id)

	r.Record("trades", "2330", "id-3")
	id, _ = r.Resolve("trades", "2330")
	assert.Equal(t, "id-3", id)
	assert.Equal(t, 2, r.Len())

	id, ok = r.RemoveByCompositeKey("trades", "2330")
	require.True(t, ok)
	assert.Equal(t, "id-3", id)
	_, ok = r.Resolve("trades", "2330")
	assert.False(t, ok)

	_, ok = r.RemoveByCompositeKey("trades", "2330")
	assert.False(t, ok)

	assert.Equal(t, []string{"id-2"}, r.AllIDs())
	r.Clear()
	assert.Empty(t, r.AllIDs())
}

func TestRegistryApplyAckSkipsMalformed(t *testing.T) {
	r := NewRegistry()
	r.MarkPending("trades", "2330", "2317", "2454", "0050")

	res := r.ApplyAck(port.ManyAck{Items: []port.AckRecord{
		{ID: "a", Channel: "trades", Symbol: "2330"},
		{ID: "b", Channel: "trades", Symbol: "2317"},
		{ID: "c", Channel: "trades", Symbol: "2454"},
		{Channel: "trades", Symbol: "0050"},
	}})

	assert.Equal(t, 3, res.Recorded)
	assert.Empty(t, res.Replaced)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"a", "b", "c"}, r.AllIDs())
	_, ok := r.Resolve("trades", "0050")
	assert.False(t, ok)
}

func TestRegistryApplyAckSingle(t *testing.T) {
	r := NewRegistry()
	r.MarkPending("aggregates", "2330")
	res := r.ApplyAck(port.SingleAck{Item: port.AckRecord{ID: "x", Channel: "aggregates", Symbol: "2330"}})
	assert.Equal(t, 1, res.Recorded)
	assert.Zero(t, r.Pending("aggregates", "2330"))
	id, _ := r.Resolve("aggregates", "2330")
	assert.Equal(t, "x", id)
}

func TestRegistryApplyAckMismatch(t *testing.T) {
	r := NewRegistry()
	res := r.ApplyAck(port.SingleAck{Item: port.AckRecord{ID: "x", Channel: "books", Symbol: "2330"}})
	assert.Zero(t, res.Recorded)
	assert.Zero(t, r.Len())
}

func TestRegistryOverlappingRequestsLatestAckWins(t *testing.T) {
	r := NewRegistry()
	r.MarkPending("aggregates", "2330")
	r.MarkPending("aggregates", "2330")
	assert.Equal(t, 2, r.Pending("aggregates", "2330"))

	res := r.ApplyAck(port.SingleAck{Item: port.AckRecord{ID: "id-old", Channel: "aggregates", Symbol: "2330"}})
	assert.Equal(t, 1, res.Recorded)
	assert.Empty(t, res.Replaced)

	res = r.ApplyAck(port.SingleAck{Item: port.AckRecord{ID: "id-new", Channel: "aggregates", Symbol: "2330"}})
	assert.Equal(t, 1, res.Recorded)
	assert.Equal(t, []string{"id-old"}, res.Replaced)

	id, _ := r.Resolve("aggregates", "2330")
	assert.Equal(t, "id-new", id)
	assert.Zero(t, r.Pending("aggregates", "2330"))

	// 没有在途请求的回执仍然拒绝
	res = r.ApplyAck(port.SingleAck{Item: port.AckRecord{ID: "id-x", Channel: "aggregates", Symbol: "2330"}})
	assert.Zero(t, res.Recorded)
}

func TestRegistryRemoveKeepsInFlight(t *testing.T) {
	r := NewRegistry()
	r.Record("trades", "2330", "a")
	r.MarkPending("trades", "2330")

	_, ok := r.RemoveByCompositeKey("trades", "2330")
	require.True(t, ok)
	assert.Equal(t, 1, r.Pending("trades", "2330"))

	res := r.ApplyAck(port.SingleAck{Item: port.AckRecord{ID: "b", Channel: "trades", Symbol: "2330"}})
	assert.Equal(t, 1, res.Recorded)
	assert.Empty(t, res.Replaced)
	assert.Equal(t, []string{"b"}, r.AllIDs())
}

func TestRegistryApplyUnsubscribeAck(t *testing.T) {
	r := NewRegistry()
	r.Record("trades", "2330", "a")
	r.Record("trades", "2317", "b")

	n := r.ApplyUnsubscribeAck(port.ManyAck{Items: []port.AckRecord{{ID: "a"}, {ID: "zzz"}}})
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"b"}, r.AllIDs())
}

func TestRegistryRecords(t *testing.T) {
	r := NewRegistry()
	r.Record("trades", "2454", "c")
	r.Record("aggregates", "2330", "a")
	r.Record("trades", "2330", "b")

	recs := r.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, Key{"aggregates", "2330"}, recs[0].Key)
	assert.Equal(t, Key{"trades", "2330"}, recs[1].Key)
	assert.Equal(t, "trades_2454", recs[2].Key.String())
}
