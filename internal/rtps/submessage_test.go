package rtps

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wirechart/internal/core"
)

func TestSubmessageTypeString(t *testing.T) {
	tests := []struct {
		t    SubmessageType
		want string
	}{
		{Unset, "UNSET"},
		{Data, "DATA"},
		{Discovery | DataP, "DISCOVERY_DATA_P"},
		{Piggyback | Heartbeat | Batch, "PIGGYBACK_HEARTBEAT_BATCH"},
		{Data | Fragment | Durable | Repair, "DATA_FRAGMENT_DURABLE_REPAIR"},
		{Nack | Fragment, "NACK_FRAGMENT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.t.String())
	}
}

func TestCombinationsAreUniqueAndValid(t *testing.T) {
	seen := make(map[SubmessageType]bool)
	for i, c := range Combinations {
		assert.False(t, seen[c], "duplicate combination %s", c)
		seen[c] = true
		assert.Equal(t, i, c.Order())

		got, err := c.Validate()
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestValidateRejectsNonCanonical(t *testing.T) {
	for _, bad := range []SubmessageType{
		Unset,
		Discovery,
		Data | State | Repair,
		Heartbeat | Gap,
		Discovery | Data,
	} {
		_, err := bad.Validate()
		assert.ErrorIs(t, err, core.ErrUnrecognizedSubmessage, bad.String())
		assert.Equal(t, -1, bad.Order())
	}
}

func TestCombine(t *testing.T) {
	assert.Equal(t, Data|Durable|Repair, Combine(Data, Repair, Durable))
	assert.Equal(t, Unset, Combine())
}

func TestFilterByFlag(t *testing.T) {
	disc := FilterByFlag(Discovery, false)
	rest := FilterByFlag(Discovery, true)
	assert.Len(t, disc, 8)
	assert.Equal(t, len(Combinations), len(disc)+len(rest))
	for _, c := range disc {
		assert.True(t, c.Has(Discovery))
	}
	for _, c := range rest {
		assert.False(t, c.Has(Discovery))
	}
	// canonical order is preserved
	for i := 1; i < len(rest); i++ {
		assert.Less(t, rest[i-1].Order(), rest[i].Order())
	}
}

func TestSeqNumArity(t *testing.T) {
	tests := []struct {
		t    SubmessageType
		want int
	}{
		{Data, 1},
		{Data | Batch, 2},
		{Heartbeat, 2},
		{Piggyback | Heartbeat | Batch, 4},
		{Gap, 2},
		{AckNack, 1},
		{Discovery | DataP, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.t.SeqNumArity(), tt.t.String())
	}
}

func TestSubmessageSeqNum(t *testing.T) {
	hb := &Submessage{Type: Heartbeat, SeqNumTuple: []int64{1, 9}}
	sn, ok := hb.SeqNum()
	require.True(t, ok)
	assert.Equal(t, int64(9), sn)
	first, ok := hb.FirstAvailableSeqNum()
	require.True(t, ok)
	assert.Equal(t, int64(1), first)

	gap := &Submessage{Type: Gap, SeqNumTuple: []int64{3, 6}}
	_, ok = gap.SeqNum()
	assert.False(t, ok)
	start, end, ok := gap.GapRange()
	require.True(t, ok)
	assert.Equal(t, int64(3), start)
	assert.Equal(t, int64(6), end)

	data := &Submessage{Type: Data, SeqNumTuple: []int64{4}}
	sn, ok = data.SeqNum()
	require.True(t, ok)
	assert.Equal(t, int64(4), sn)
	_, ok = data.FirstAvailableSeqNum()
	assert.False(t, ok)
}

func TestBuildSubmessage(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		frameType core.FrameType
		multiple  bool
		seqNums   []int64
		wantType  SubmessageType
		wantTopic string
		wantTuple []int64
	}{
		{"user data", "DATA -> Square", core.FrameUserData, false, []int64{7}, Data, "Square", []int64{7}},
		{"fragment", "DATA_FRAG -> Square", core.FrameUserData, false, []int64{8}, Data | Fragment, "Square", []int64{8}},
		{"batch", "DATA_BATCH -> Square", core.FrameUserData, false, []int64{1, 4}, Data | Batch, "Square", []int64{1, 4}},
		{"heartbeat alone", "HEARTBEAT -> Square", core.FrameUserData, false, []int64{1, 5}, Heartbeat, "Square", []int64{1, 5}},
		{"piggyback heartbeat", "HEARTBEAT -> Square", core.FrameUserData, true, []int64{1, 5}, Piggyback | Heartbeat, "Square", []int64{1, 5}},
		{"heartbeat batch", "HEARTBEAT_BATCH -> Square", core.FrameUserData, false, []int64{1, 2, 3, 4}, Heartbeat | Batch, "Square", []int64{1, 2, 3, 4}},
		{"acknack", "ACKNACK -> Square", core.FrameUserData, false, []int64{3}, AckNack, "Square", []int64{3}},
		{"nack frag", "NACK_FRAG -> Square", core.FrameUserData, false, []int64{3}, Nack | Fragment, "Square", []int64{3}},
		{"gap", "GAP -> Square", core.FrameUserData, false, []int64{2, 4}, Gap, "Square", []int64{2, 4}},
		{"liveliness", "DATA(m)", core.FrameMetaData, false, []int64{1}, Liveliness, "", []int64{1}},
		{"participant", "DATA(p)", core.FrameDiscovery, false, []int64{1}, Discovery | DataP, "", []int64{1}},
		{"endpoint", "DATA(w) -> Square", core.FrameDiscovery, false, []int64{2}, Discovery | DataRW, "Square", []int64{2}},
		{"unregister", "DATA(w[UD])", core.FrameDiscovery, false, []int64{3}, Discovery | State, "", []int64{3}},
		{"discovery heartbeat", "HEARTBEAT", core.FrameDiscovery, true, []int64{1, 2}, Discovery | Piggyback | Heartbeat, "", []int64{1, 2}},
		{"user state", "DATA([UD]) -> Square", core.FrameUserData, false, []int64{9}, Data | State, "Square", []int64{9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := SubmessageInput{Token: tt.token, Length: 40, FrameType: tt.frameType, Multiple: tt.multiple}
			sm, next, err := BuildSubmessage(in, tt.seqNums, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, sm.Type)
			assert.Equal(t, tt.wantTopic, sm.Topic)
			assert.Equal(t, tt.wantTuple, sm.SeqNumTuple)
			assert.Equal(t, 40, sm.Length)
			assert.Equal(t, len(tt.seqNums), next)
			assert.Len(t, sm.SeqNumTuple, sm.Type.SeqNumArity())
			assert.True(t, sm.Type.IsCanonical())
		})
	}
}

func TestBuildSubmessageSharedPosition(t *testing.T) {
	seqNums := []int64{7, 1, 7, 9}
	data, pos, err := BuildSubmessage(SubmessageInput{Token: "DATA -> T", FrameType: core.FrameUserData}, seqNums, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, data.SeqNumTuple)
	assert.Equal(t, 1, pos)

	hb, pos, err := BuildSubmessage(SubmessageInput{Token: "HEARTBEAT -> T", FrameType: core.FrameUserData, Multiple: true}, seqNums, pos)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 7}, hb.SeqNumTuple)
	assert.Equal(t, 3, pos)
}

func TestBuildSubmessageErrors(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		frameType core.FrameType
		seqNums   []int64
		want      error
		class     core.ErrorClass
	}{
		{"routing port", "port 7400", core.FrameUserData, []int64{1}, core.ErrRoutingNoise, core.ClassBenignSkip},
		{"routing ping", "PING -> Square", core.FrameUserData, []int64{1}, core.ErrRoutingNoise, core.ClassBenignSkip},
		{"no topic", "DATA", core.FrameUserData, []int64{1}, core.ErrNoAttributableTopic, core.ClassBenignSkip},
		{"unknown", "FOO -> Square", core.FrameUserData, []int64{1}, core.ErrUnrecognizedSubmessage, core.ClassClassificationFailure},
		{"discovery only", "INFO_FOO", core.FrameDiscovery, []int64{1}, core.ErrUnrecognizedSubmessage, core.ClassClassificationFailure},
		{"not canonical", "DATA", core.FrameDiscovery, []int64{1}, core.ErrUnrecognizedSubmessage, core.ClassClassificationFailure},
		{"exhausted", "HEARTBEAT -> Square", core.FrameUserData, []int64{1}, core.ErrSeqNumExhausted, core.ClassStructuralReject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, pos, err := BuildSubmessage(SubmessageInput{Token: tt.token, FrameType: tt.frameType}, tt.seqNums, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, tt.class, core.Classify(err))
			assert.Equal(t, 0, pos)
		})
	}
}

func TestSplitToken(t *testing.T) {
	topic, mnemonic := SplitToken("DATA(w) -> Square")
	assert.Equal(t, "Square", topic)
	assert.Equal(t, "DATA(w)", mnemonic)

	topic, mnemonic = SplitToken(" HEARTBEAT ")
	assert.Empty(t, topic)
	assert.Equal(t, "HEARTBEAT", mnemonic)
}
