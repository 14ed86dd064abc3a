package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_FoldsActionIntoPayload(t *testing.T) {
	frame, err := Encode(JoinChannel{ChannelID: "main"})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(frame, &fields))
	assert.Equal(t, "joinChannel", fields["action"])
	assert.Equal(t, "main", fields["channelId"])
}

func TestEncode_PTTState(t *testing.T) {
	frame, err := Encode(UpdatePTTState{ChannelID: "main", IsSpeaking: true})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(frame, &fields))
	assert.Equal(t, "updatePTTState", fields["action"])
	assert.Equal(t, true, fields["isSpeaking"])
}

func TestDecode_Variants(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Inbound
	}{
		{
			name: "ptt state update",
			data: `{"type":"pttStateUpdate","userId":"p1","channelId":"main","isSpeaking":true}`,
			want: PTTStateUpdate{UserID: "p1", ChannelID: "main", IsSpeaking: true},
		},
		{
			name: "user joined",
			data: `{"type":"userJoined","userId":"p2","channelId":"dispatch"}`,
			want: UserJoined{UserID: "p2", ChannelID: "dispatch"},
		},
		{
			name: "user left",
			data: `{"type":"userLeft","userId":"p2","channelId":"dispatch"}`,
			want: UserLeft{UserID: "p2", ChannelID: "dispatch"},
		},
		{
			name: "pong",
			data: `{"type":"pong","timestamp":1700000000000}`,
			want: Pong{Timestamp: 1700000000000},
		},
		{
			name: "server error",
			data: `{"type":"error","error":"unknown channel"}`,
			want: ServerError{Message: "unknown channel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_UnknownTypeIsTypedError(t *testing.T) {
	_, err := Decode([]byte(`{"type":"somethingElse","x":1}`))
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestDecode_MalformedFrame(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedMessage)
}
