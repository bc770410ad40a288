package base

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateIDShape(t *testing.T) {
	id := GenerateID()
	require.Len(t, id, 32)
	require.NotContains(t, id, "-")
}

func TestGenerateIDUnique(t *testing.T) {
	require.NotEqual(t, GenerateID(), GenerateID())
}

func TestStatusTerminal(t *testing.T) {
	require.True(t, Failed.Terminal())
	require.True(t, Complete.Terminal())
	require.False(t, Waiting.Terminal())
	require.False(t, Running.Terminal())
	require.False(t, Scheduled.Terminal())
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := &Envelope{Class: "EmailJob", ID: "abc", Args: []byte(`[{"a":1}]`)}
	data, err := EncodeEnvelope(env)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, env.Class, decoded.Class)
	require.Equal(t, env.ID, decoded.ID)
	require.JSONEq(t, string(env.Args), string(decoded.Args))
}

func TestStatusRecordRoundTrip(t *testing.T) {
	rec := &StatusRecord{Status: Running, Updated: 100, Started: 90}
	data, err := EncodeStatus(rec)
	require.NoError(t, err)
	decoded, err := DecodeStatus(data)
	require.NoError(t, err)
	require.Equal(t, rec, decoded)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte("not json"))
	require.Error(t, err)
}
