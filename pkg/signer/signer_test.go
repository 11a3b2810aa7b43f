package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransaction_MarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		want    string
		wantErr bool
	}{
		{
			name: "function call",
			tx: Transaction{
				ReceiverID: "wallet.test",
				Actions: []Action{
					FunctionCall{MethodName: "confirm", Args: []byte(`{"request_id":0}`), Gas: "100000000000000", Deposit: "0"},
				},
			},
			want: `{"receiverId":"wallet.test","actions":[{"type":"FunctionCall","params":{"methodName":"confirm","args":{"request_id":0},"gas":"100000000000000","deposit":"0"}}]}`,
		},
		{
			name: "deployment batch",
			tx: Transaction{
				ReceiverID: "team.alice.test",
				Actions: []Action{
					CreateAccount{},
					Transfer{Deposit: "1"},
					DeployContract{Code: []byte{0, 97, 115, 109}},
					FunctionCall{MethodName: "new", Gas: "1", Deposit: "0"},
				},
			},
			want: `{"receiverId":"team.alice.test","actions":[
				{"type":"CreateAccount","params":{}},
				{"type":"Transfer","params":{"deposit":"1"}},
				{"type":"DeployContract","params":{"code":"AGFzbQ=="}},
				{"type":"FunctionCall","params":{"methodName":"new","args":{},"gas":"1","deposit":"0"}}]}`,
		},
		{
			name:    "broken args",
			tx:      Transaction{ReceiverID: "wallet.test", Actions: []Action{FunctionCall{MethodName: "m", Args: []byte("{")}}},
			wantErr: true,
		},
		{
			name:    "nil action",
			tx:      Transaction{ReceiverID: "wallet.test", Actions: []Action{nil}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs, err := json.Marshal(tt.tx)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(bs))
		})
	}
}

func TestDryRun(t *testing.T) {
	var buf bytes.Buffer
	var s Signer = NewDryRun(&buf)
	outcome, err := s.SignAndSendTransaction(context.Background(), Transaction{
		ReceiverID: "wallet.test",
		Actions:    []Action{Transfer{Deposit: "5"}},
	})
	require.NoError(t, err)
	require.Empty(t, outcome.TransactionHash)
	require.JSONEq(t, `{"receiverId":"wallet.test","actions":[{"type":"Transfer","params":{"deposit":"5"}}]}`, string(outcome.Raw))
	require.Equal(t, string(outcome.Raw)+"\n", buf.String())
}
