package multisig

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/arnac-io/nearmultisig/pkg/core"
	"github.com/arnac-io/nearmultisig/pkg/rpc"
	"github.com/arnac-io/nearmultisig/pkg/signer"
)

type fakeWallet struct {
	members          []string
	numConfirmations uint32
	nonce            uint64
	requests         map[uint64]*core.Request
}

// fakeChain is an in-memory node hosting a factory and the wallets it creates.
// It implements both Node and signer.Signer.
type fakeChain struct {
	mu         sync.Mutex
	factoryID  string
	signerID   string
	wallets    map[string]*fakeWallet
	balances   map[string]string
	views      map[string]int
	txs        []signer.Transaction
	failSigner error
}

func newFakeChain(factoryID string) *fakeChain {
	return &fakeChain{
		factoryID: factoryID,
		wallets:   map[string]*fakeWallet{},
		balances:  map[string]string{factoryID: "1"},
		views:     map[string]int{},
	}
}

func (c *fakeChain) viewCount(accountID, method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.views[accountID+":"+method]
}

func unknownAccount(accountID string) error {
	return &rpc.RPCError{
		Code:    -32000,
		Name:    "HANDLER_ERROR",
		Cause:   "UNKNOWN_ACCOUNT",
		Message: "Server error",
		Payload: json.RawMessage(fmt.Sprintf(`{"data":"account %s does not exist while viewing"}`, accountID)),
	}
}

func (c *fakeChain) CallFunction(ctx context.Context, accountID, methodName string, args []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[accountID+":"+methodName]++

	if accountID == c.factoryID {
		switch methodName {
		case "has_code":
			return []byte("true"), nil
		case "get_wallet_count":
			return json.Marshal(len(c.wallets))
		case "get_owner":
			return []byte(`"owner.test"`), nil
		}
		return nil, &rpc.RPCError{Message: "wasm execution failed with error: MethodNotFound"}
	}
	w, ok := c.wallets[accountID]
	if !ok {
		return nil, unknownAccount(accountID)
	}
	switch methodName {
	case "get_wallet_info":
		return json.Marshal(core.WalletInfo{
			Members:          w.members,
			NumConfirmations: w.numConfirmations,
			RequestNonce:     w.nonce,
			ActiveRequests:   uint32(len(w.requests)),
		})
	case "get_members":
		return json.Marshal(w.members)
	case "get_num_confirmations":
		return json.Marshal(w.numConfirmations)
	case "get_request_nonce":
		return json.Marshal(w.nonce)
	case "get_requests":
		ids := make([]uint64, 0, len(w.requests))
		for id := range w.requests {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		requests := make([]core.Request, 0, len(ids))
		for _, id := range ids {
			requests = append(requests, *w.requests[id])
		}
		return json.Marshal(requests)
	case "get_request":
		var a requestIDArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		r, ok := w.requests[a.RequestID]
		if !ok {
			return []byte("null"), nil
		}
		return json.Marshal(r)
	}
	return nil, &rpc.RPCError{Message: "wasm execution failed with error: MethodNotFound"}
}

func (c *fakeChain) ViewAccountRaw(ctx context.Context, accountID string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[accountID+":view_account"]++
	balance, ok := c.balances[accountID]
	if !ok {
		return nil, unknownAccount(accountID)
	}
	return json.Marshal(rpc.AccountView{Amount: balance, Locked: "0", StorageUsage: 100})
}

func (c *fakeChain) SignAndSendTransaction(ctx context.Context, tx signer.Transaction) (signer.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs = append(c.txs, tx)
	if c.failSigner != nil {
		return signer.Outcome{}, c.failSigner
	}
	for _, a := range tx.Actions {
		call, ok := a.(signer.FunctionCall)
		if !ok {
			continue
		}
		if err := c.execute(tx.ReceiverID, call); err != nil {
			return signer.Outcome{}, err
		}
	}
	return signer.Outcome{TransactionHash: fmt.Sprintf("tx%d", len(c.txs))}, nil
}

func (c *fakeChain) execute(receiverID string, call signer.FunctionCall) error {
	if receiverID == c.factoryID && call.MethodName == "create" {
		var args struct {
			Name             string   `json:"name"`
			Members          []string `json:"members"`
			NumConfirmations uint32   `json:"num_confirmations"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return err
		}
		id := args.Name + "." + c.factoryID
		c.wallets[id] = &fakeWallet{
			members:          args.Members,
			numConfirmations: args.NumConfirmations,
			requests:         map[uint64]*core.Request{},
		}
		c.balances[id] = call.Deposit
		return nil
	}
	w, ok := c.wallets[receiverID]
	if !ok {
		return fmt.Errorf("account %s does not exist", receiverID)
	}
	switch call.MethodName {
	case "add_request":
		var args addRequestArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return err
		}
		w.requests[w.nonce] = &core.Request{
			ID:            w.nonce,
			Requester:     c.signerID,
			ReceiverID:    args.Request.ReceiverID,
			Actions:       args.Request.Actions,
			Description:   args.Request.Description,
			Confirmations: newSet(c.signerID),
			Required:      w.numConfirmations,
		}
		w.nonce++
	case "confirm":
		var args requestIDArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return err
		}
		r, ok := w.requests[args.RequestID]
		if !ok {
			return fmt.Errorf("request %d not found", args.RequestID)
		}
		r.Confirmations.Add(c.signerID)
	case "revoke_confirmation":
		var args requestIDArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return err
		}
		if r, ok := w.requests[args.RequestID]; ok {
			r.Confirmations.Remove(c.signerID)
		}
	case "delete_request":
		var args requestIDArgs
		if err := json.Unmarshal(call.Args, &args); err != nil {
			return err
		}
		delete(w.requests, args.RequestID)
	}
	return nil
}

func newSet(members ...string) mapset.Set[string] {
	return mapset.NewThreadUnsafeSet(members...)
}
