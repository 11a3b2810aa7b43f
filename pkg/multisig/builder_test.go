package multisig

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arnac-io/nearmultisig/pkg/amount"
	"github.com/arnac-io/nearmultisig/pkg/cache"
	"github.com/arnac-io/nearmultisig/pkg/core"
	"github.com/arnac-io/nearmultisig/pkg/signer"
)

func newTestPair(chain *fakeChain) (*Query, *Builder) {
	c := cache.New()
	return NewQuery(chain, c, WithFactory(testFactory)), NewBuilder(chain, c, WithFactory(testFactory))
}

func TestBuilder_CreateAndConfirm(t *testing.T) {
	chain := newFakeChain(testFactory)
	q, b := newTestPair(chain)
	ctx := context.Background()

	chain.signerID = "a.test"
	walletID, _, err := b.CreateWalletViaFactory(ctx, core.CreateWalletParams{
		Name:             "team",
		Members:          []string{"a.test", "b.test"},
		NumConfirmations: 2,
		Deposit:          "5",
	})
	require.NoError(t, err)
	require.Equal(t, "team.factory.test", walletID)

	require.Len(t, chain.txs, 1)
	tx := chain.txs[0]
	require.Equal(t, testFactory, tx.ReceiverID)
	require.Len(t, tx.Actions, 1)
	create := tx.Actions[0].(signer.FunctionCall)
	require.Equal(t, "create", create.MethodName)
	require.Equal(t, Gas300T, create.Gas)
	require.Equal(t, amount.ToSmallestUnit("5"), create.Deposit)
	require.Equal(t, "5000000000000000000000000", create.Deposit)
	require.JSONEq(t, `{"name":"team","members":["a.test","b.test"],"num_confirmations":2}`, string(create.Args))

	exists, err := q.AccountExists(ctx, walletID)
	require.NoError(t, err)
	require.True(t, exists)

	_, err = b.AddRequest(ctx, walletID, core.RequestInput{
		ReceiverID:  "bob.test",
		Actions:     core.Actions{core.TransferAction{Amount: amount.ToSmallestUnit("1.5")}},
		Description: "pay bob",
	})
	require.NoError(t, err)

	request, err := q.Request(ctx, walletID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, request.NumConfirmed())
	require.False(t, request.Actionable())

	chain.signerID = "b.test"
	_, err = b.Confirm(ctx, walletID, 0)
	require.NoError(t, err)

	request, err = q.Request(ctx, walletID, 0)
	require.NoError(t, err)
	require.Equal(t, 2, request.NumConfirmed())
	require.True(t, request.IsConfirmedBy("b.test"))
	require.True(t, request.Actionable())
	require.Equal(t, 1.0, request.Progress())
	require.Equal(t, 2, chain.viewCount(walletID, "get_request"))
}

func TestBuilder_RequestCalls(t *testing.T) {
	tests := []struct {
		name   string
		call   func(b *Builder) (signer.Outcome, error)
		method string
	}{
		{
			name:   "confirm",
			call:   func(b *Builder) (signer.Outcome, error) { return b.Confirm(context.Background(), "team.factory.test", 0) },
			method: "confirm",
		},
		{
			name:   "revoke",
			call:   func(b *Builder) (signer.Outcome, error) { return b.RevokeConfirmation(context.Background(), "team.factory.test", 0) },
			method: "revoke_confirmation",
		},
		{
			name:   "delete",
			call:   func(b *Builder) (signer.Outcome, error) { return b.DeleteRequest(context.Background(), "team.factory.test", 0) },
			method: "delete_request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := seededChain()
			_, b := newTestPair(chain)
			outcome, err := tt.call(b)
			require.NoError(t, err)
			require.Equal(t, "tx1", outcome.TransactionHash)
			require.Equal(t, []signer.Transaction{{
				ReceiverID: "team.factory.test",
				Actions: []signer.Action{signer.FunctionCall{
					MethodName: tt.method,
					Args:       []byte(`{"request_id":0}`),
					Gas:        Gas100T,
					Deposit:    "0",
				}},
			}}, chain.txs)
		})
	}
}

func TestBuilder_AddRequestArgs(t *testing.T) {
	chain := seededChain()
	_, b := newTestPair(chain)
	_, err := b.AddRequest(context.Background(), "team.factory.test", core.RequestInput{
		ReceiverID: "team.factory.test",
		Actions:    core.Actions{core.ChangeNumConfirmationsAction{NumConfirmations: 3}},
	})
	require.NoError(t, err)
	call := chain.txs[0].Actions[0].(signer.FunctionCall)
	require.Equal(t, "add_request", call.MethodName)
	require.Equal(t, Gas100T, call.Gas)
	require.Equal(t, "0", call.Deposit)
	require.JSONEq(t, `{"request":{"receiver_id":"team.factory.test","actions":[{"type":"ChangeNumConfirmations","num_confirmations":3}],"description":""}}`, string(call.Args))
}

func TestBuilder_ValidationHappensBeforeSigning(t *testing.T) {
	tests := []struct {
		name      string
		run       func(b *Builder) error
		wantField string
	}{
		{
			name: "no actions",
			run: func(b *Builder) error {
				_, err := b.AddRequest(context.Background(), "team.factory.test", core.RequestInput{ReceiverID: "bob.test"})
				return err
			},
			wantField: "actions",
		},
		{
			name: "bad wallet id",
			run: func(b *Builder) error {
				_, err := b.Confirm(context.Background(), "Team!", 0)
				return err
			},
			wantField: "wallet_id",
		},
		{
			name: "threshold above members",
			run: func(b *Builder) error {
				_, _, err := b.CreateWalletViaFactory(context.Background(), core.CreateWalletParams{Name: "team", Members: []string{"a.test"}, NumConfirmations: 2, Deposit: "1"})
				return err
			},
			wantField: "num_confirmations",
		},
		{
			name: "nested wallet name",
			run: func(b *Builder) error {
				_, _, err := b.CreateWalletViaFactory(context.Background(), core.CreateWalletParams{Name: "x.y", Members: []string{"a.test"}, NumConfirmations: 1, Deposit: "1"})
				return err
			},
			wantField: "name",
		},
		{
			name: "bad deposit",
			run: func(b *Builder) error {
				_, _, err := b.CreateWalletViaFactory(context.Background(), core.CreateWalletParams{Name: "team", Members: []string{"a.test"}, NumConfirmations: 1, Deposit: "-1"})
				return err
			},
			wantField: "deposit",
		},
		{
			name: "missing deposit",
			run: func(b *Builder) error {
				_, _, err := b.CreateWalletViaFactory(context.Background(), core.CreateWalletParams{Name: "team", Members: []string{"a.test"}, NumConfirmations: 1})
				return err
			},
			wantField: "deposit",
		},
		{
			name: "deploy without code",
			run: func(b *Builder) error {
				_, err := b.DeployWallet(context.Background(), core.DeployWalletParams{AccountID: "team.a.test", Members: []string{"a.test"}, NumConfirmations: 1, InitialBalance: "1"})
				return err
			},
			wantField: "code",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := seededChain()
			_, b := newTestPair(chain)
			err := tt.run(b)
			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			require.Equal(t, tt.wantField, verr.Field)
			require.Empty(t, chain.txs)
		})
	}
}

func TestBuilder_SignerFailureInvalidates(t *testing.T) {
	chain := seededChain()
	q, b := newTestPair(chain)
	ctx := context.Background()

	_, err := q.Requests(ctx, "team.factory.test")
	require.NoError(t, err)

	rejected := errors.New("User rejected the request")
	chain.failSigner = rejected
	_, err = b.Confirm(ctx, "team.factory.test", 0)

	var signerErr *core.SignerError
	require.True(t, errors.As(err, &signerErr))
	require.True(t, errors.Is(err, rejected))
	require.Equal(t, "User rejected the request", err.Error())
	require.Len(t, chain.txs, 1)

	_, err = q.Requests(ctx, "team.factory.test")
	require.NoError(t, err)
	require.Equal(t, 2, chain.viewCount("team.factory.test", "get_requests"))
}

func TestBuilder_WritesRefreshOtherAccounts(t *testing.T) {
	chain := seededChain()
	chain.balances["bob.test"] = "0"
	chain.balances["b.test"] = "100"
	q, b := newTestPair(chain)
	ctx := context.Background()

	for _, id := range []string{"bob.test", "b.test"} {
		_, err := q.Balance(ctx, id)
		require.NoError(t, err)
	}
	// request 0 transfers to bob.test once confirmed, the signer pays for gas
	chain.mu.Lock()
	chain.balances["bob.test"] = "1500"
	chain.balances["b.test"] = "99"
	chain.mu.Unlock()

	chain.signerID = "b.test"
	_, err := b.Confirm(ctx, "team.factory.test", 0)
	require.NoError(t, err)

	balance, err := q.Balance(ctx, "bob.test")
	require.NoError(t, err)
	require.Equal(t, "1500", balance)
	balance, err = q.Balance(ctx, "b.test")
	require.NoError(t, err)
	require.Equal(t, "99", balance)
	require.Equal(t, 2, chain.viewCount("bob.test", "view_account"))
}

func TestBuilder_FactoryCreateClearsCache(t *testing.T) {
	chain := seededChain()
	q, b := newTestPair(chain)
	ctx := context.Background()

	count, err := q.FactoryWalletCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
	_, err = q.Members(ctx, "team.factory.test")
	require.NoError(t, err)

	_, _, err = b.CreateWalletViaFactory(ctx, core.CreateWalletParams{Name: "ops", Members: []string{"a.test"}, NumConfirmations: 1, Deposit: "0.5"})
	require.NoError(t, err)

	count, err = q.FactoryWalletCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
	_, err = q.Members(ctx, "team.factory.test")
	require.NoError(t, err)
	require.Equal(t, 2, chain.viewCount("team.factory.test", "get_members"))
}

func TestBuilder_DeployWallet(t *testing.T) {
	chain := seededChain()
	_, b := newTestPair(chain)
	code := []byte{0, 97, 115, 109}
	_, err := b.DeployWallet(context.Background(), core.DeployWalletParams{
		AccountID:        "vault.a.test",
		Members:          []string{"a.test", "b.test"},
		NumConfirmations: 1,
		InitialBalance:   amount.ToSmallestUnit("3"),
		Code:             code,
	})
	// the fake chain can't execute "new" on an account it never created
	require.Error(t, err)
	require.Len(t, chain.txs, 1)

	tx := chain.txs[0]
	require.Equal(t, "vault.a.test", tx.ReceiverID)
	require.Len(t, tx.Actions, 4)
	require.Equal(t, signer.CreateAccount{}, tx.Actions[0])
	require.Equal(t, signer.Transfer{Deposit: "3000000000000000000000000"}, tx.Actions[1])
	require.Equal(t, signer.DeployContract{Code: code}, tx.Actions[2])
	newCall := tx.Actions[3].(signer.FunctionCall)
	require.Equal(t, "new", newCall.MethodName)
	require.Equal(t, Gas100T, newCall.Gas)
	require.Equal(t, "0", newCall.Deposit)
	require.JSONEq(t, `{"members":["a.test","b.test"],"num_confirmations":1}`, string(newCall.Args))
}
