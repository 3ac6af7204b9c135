package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode_ToolsCall(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"GetUser","arguments":{"id":"42"}}}`)

	env, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, MethodToolsCall, env.Method())

	params, err := env.ParseToolCall()
	require.NoError(t, err)
	require.Equal(t, "GetUser", params.Name)
	require.Equal(t, "42", params.Arguments["id"])
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	require.Error(t, err)
}

func TestRawID_PreservesNumericID(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`)
	env, err := Decode(raw)
	require.NoError(t, err)
	require.JSONEq(t, "7", string(env.RawID()))
}

func TestParseToolCall_MissingParams(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call"}`)
	env, err := Decode(raw)
	require.NoError(t, err)
	_, err = env.ParseToolCall()
	require.Error(t, err)
}
