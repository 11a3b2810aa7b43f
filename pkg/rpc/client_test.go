package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func newNode(t *testing.T, handler func(w http.ResponseWriter, req recordedRequest)) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func bytesAsJSONArray(s string) string {
	arr := make([]int, 0, len(s))
	for _, b := range []byte(s) {
		arr = append(arr, int(b))
	}
	bs, _ := json.Marshal(arr)
	return string(bs)
}

func TestClient_CallFunction(t *testing.T) {
	srv, requests := newNode(t, func(w http.ResponseWriter, req recordedRequest) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"result":` + bytesAsJSONArray(`{"num_confirmations":2}`) + `,"logs":[],"block_height":10}}`))
	})
	c := NewClient(srv.URL)

	got, err := c.CallFunction(context.Background(), "wallet.test", "get_request", []byte(`{"request_id":1}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"num_confirmations":2}`, string(got))

	_, err = c.CallFunction(context.Background(), "wallet.test", "get_wallet_info", nil)
	require.NoError(t, err)

	require.Len(t, *requests, 2)
	first, second := (*requests)[0], (*requests)[1]
	require.Equal(t, "query", first.Method)
	require.Less(t, first.ID, second.ID)

	var params callFunctionParams
	require.NoError(t, json.Unmarshal(first.Params, &params))
	require.Equal(t, callFunctionParams{
		RequestType: "call_function",
		Finality:    FinalityFinal,
		AccountID:   "wallet.test",
		MethodName:  "get_request",
		ArgsBase64:  base64.StdEncoding.EncodeToString([]byte(`{"request_id":1}`)),
	}, params)

	require.NoError(t, json.Unmarshal(second.Params, &params))
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte(`{}`)), params.ArgsBase64)
}

func TestClient_ViewAccount(t *testing.T) {
	srv, requests := newNode(t, func(w http.ResponseWriter, req recordedRequest) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"amount":"5000000000000000000000000","locked":"0","code_hash":"11111111111111111111111111111111","storage_usage":182,"block_height":7}}`))
	})
	c := NewClient(srv.URL, WithFinality(FinalityOptimistic))

	view, err := c.ViewAccount(context.Background(), "alice.test")
	require.NoError(t, err)
	require.Equal(t, "5000000000000000000000000", view.Amount)
	require.Equal(t, uint64(182), view.StorageUsage)

	var params viewAccountParams
	require.NoError(t, json.Unmarshal((*requests)[0].Params, &params))
	require.Equal(t, viewAccountParams{RequestType: "view_account", Finality: FinalityOptimistic, AccountID: "alice.test"}, params)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		body           string
		wantHTTPStatus int
		wantCause      string
		unknownAccount bool
	}{
		{
			name:           "unknown account",
			status:         http.StatusOK,
			body:           `{"jsonrpc":"2.0","id":1,"error":{"name":"HANDLER_ERROR","cause":{"name":"UNKNOWN_ACCOUNT","info":{"requested_account_id":"ghost.test"}},"code":-32000,"message":"Server error","data":"account ghost.test does not exist while viewing"}}`,
			wantCause:      "UNKNOWN_ACCOUNT",
			unknownAccount: true,
		},
		{
			name:           "legacy unknown account",
			status:         http.StatusOK,
			body:           `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"Server error","data":"account ghost.test does not exist while viewing"}}`,
			unknownAccount: true,
		},
		{
			name:      "other handler error",
			status:    http.StatusOK,
			body:      `{"jsonrpc":"2.0","id":1,"error":{"name":"HANDLER_ERROR","cause":{"name":"UNAVAILABLE_SHARD"},"code":-32000,"message":"Server error"}}`,
			wantCause: "UNAVAILABLE_SHARD",
		},
		{
			name:           "too many requests",
			status:         http.StatusTooManyRequests,
			body:           `{}`,
			wantHTTPStatus: http.StatusTooManyRequests,
		},
		{
			name:   "execution error inside result",
			status: http.StatusOK,
			body:   `{"jsonrpc":"2.0","id":1,"result":{"error":"wasm execution failed with error: MethodNotFound","logs":[]}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newNode(t, func(w http.ResponseWriter, req recordedRequest) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			c := NewClient(srv.URL)
			_, err := c.CallFunction(context.Background(), "ghost.test", "get_members", nil)
			var rpcErr *RPCError
			require.True(t, errors.As(err, &rpcErr), "got %v", err)
			require.Equal(t, tt.wantHTTPStatus, rpcErr.HTTPStatus)
			require.Equal(t, tt.wantCause, rpcErr.Cause)
			require.NotEmpty(t, rpcErr.Payload)
			require.Equal(t, tt.unknownAccount, IsUnknownAccount(err))
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newNode(t, func(w http.ResponseWriter, req recordedRequest) {
		<-release
	})
	defer close(release)
	c := NewClient(srv.URL, WithTimeout(50*time.Millisecond))

	_, err := c.ViewAccount(context.Background(), "slow.test")
	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr), "got %v", err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.False(t, IsUnknownAccount(err))
}

func TestClient_APIKey(t *testing.T) {
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("Authorization")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"amount":"1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()), WithAPIKey("secret"))
	_, err := c.ViewAccount(context.Background(), "alice.test")
	require.NoError(t, err)
	require.Equal(t, "Bearer secret", header)
}
