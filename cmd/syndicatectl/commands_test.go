package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testPool  = "0x1111111111111111111111111111111111111111"
	testActor = "0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
	testToken = "0x7070707070707070707070707070707070707070"
)

type capturedCall struct {
	method      string
	path        string
	body        map[string]interface{}
	requireAuth bool
}

func stubAPI(t *testing.T, result string, apiErr *apiError) *[]capturedCall {
	t.Helper()
	calls := []capturedCall{}
	previous := apiCall
	apiCall = func(method, path string, body interface{}, requireAuth bool) (json.RawMessage, *apiError, error) {
		call := capturedCall{method: method, path: path, requireAuth: requireAuth}
		if body != nil {
			call.body = body.(map[string]interface{})
		}
		calls = append(calls, call)
		if apiErr != nil {
			return nil, apiErr, nil
		}
		return json.RawMessage(result), nil, nil
	}
	t.Cleanup(func() { apiCall = previous })
	return &calls
}

func TestArgumentValidation(t *testing.T) {
	calls := stubAPI(t, "{}", nil)
	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no command", args: nil, wantErr: "Usage:"},
		{name: "unknown command", args: []string{"explode"}, wantErr: "Unknown command: explode"},
		{name: "deposit without pool", args: []string{"deposit", "--from", testActor, "--amount", "10"}, wantErr: "Error: --id is required"},
		{name: "deposit bad address", args: []string{"deposit", "--id", testPool, "--from", "nope", "--amount", "10"}, wantErr: "Error: --from:"},
		{name: "deposit fractional amount", args: []string{"deposit", "--id", testPool, "--from", testActor, "--amount", "1.5"}, wantErr: "Error: --amount must be a positive integer"},
		{name: "deposit zero", args: []string{"deposit", "--id", testPool, "--from", testActor, "--amount", "000"}, wantErr: "Error: --amount must be positive"},
		{name: "create bounty out of range", args: []string{"create", "--creator", testActor, "--token", testToken, "--exchange-rate", "1", "--bounty-rate", "1000", "--capacity", "10"}, wantErr: "Error: --bounty-rate must be within (0, 1000)"},
		{name: "pause bad state", args: []string{"pause", "--set", "maybe"}, wantErr: "Error: --set must be on or off"},
		{name: "positional", args: []string{"list", "extra"}, wantErr: "Error: unexpected positional arguments"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
			require.Equal(t, 1, run(tc.args, stdout, stderr))
			require.Empty(t, stdout.String())
			require.Contains(t, stderr.String(), tc.wantErr)
		})
	}
	require.Empty(t, *calls)
}

func TestDepositRequest(t *testing.T) {
	calls := stubAPI(t, `{"netPresale":"75000000000000000000"}`, nil)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := run([]string{"deposit", "--id", testPool, "--from", testActor, "--amount", "100e18", "--bounty-rate", "300"}, stdout, stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, http.MethodPost, call.method)
	require.Equal(t, "/v1/syndicates/"+testPool+"/deposit", call.path)
	require.True(t, call.requireAuth)
	require.Equal(t, "100000000000000000000", call.body["amount"])
	require.Equal(t, uint(300), call.body["bountyRatePerThousand"])
	require.Equal(t, "{\"netPresale\":\"75000000000000000000\"}\n", stdout.String())
}

func TestWithdrawTokensRecipient(t *testing.T) {
	calls := stubAPI(t, `{}`, nil)
	stderr := &bytes.Buffer{}
	code := run([]string{"withdraw-tokens", "--id", testPool, "--from", testActor, "--to", testToken}, &bytes.Buffer{}, stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Equal(t, testToken, (*calls)[0].body["recipient"])

	code = run([]string{"refund", "--id", testPool, "--from", testActor}, &bytes.Buffer{}, stderr)
	require.Equal(t, 0, code, stderr.String())
	_, hasRecipient := (*calls)[1].body["recipient"]
	require.False(t, hasRecipient)
}

func TestReadsDoNotRequireAuth(t *testing.T) {
	calls := stubAPI(t, `[]`, nil)
	require.Equal(t, 0, run([]string{"events", "--type", "syndicate.deposit", "--limit", "5"}, &bytes.Buffer{}, &bytes.Buffer{}))
	require.Equal(t, 0, run([]string{"get", "--id", testPool}, &bytes.Buffer{}, &bytes.Buffer{}))
	require.Len(t, *calls, 2)
	require.False(t, (*calls)[0].requireAuth)
	require.Equal(t, "/v1/events?limit=5&type=syndicate.deposit", (*calls)[0].path)
	require.False(t, (*calls)[1].requireAuth)
}

func TestAPIErrorIsReported(t *testing.T) {
	stubAPI(t, "", &apiError{Status: http.StatusConflict, Code: "invalid_state", Message: "syndicate: invalid state"})
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	require.Equal(t, 1, run([]string{"purchase", "--id", testPool, "--caller", testActor}, stdout, stderr))
	require.Empty(t, stdout.String())
	require.Equal(t, "API error 409 (invalid_state): syndicate: invalid state\n", stderr.String())
}

func TestKeygenPrintsSyndicateAddress(t *testing.T) {
	stdout := &bytes.Buffer{}
	require.Equal(t, 0, run([]string{"keygen"}, stdout, &bytes.Buffer{}))
	var out map[string]string
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	require.True(t, strings.HasPrefix(out["address"], "syn1"))
	require.Len(t, out["privateKey"], 64)
}
