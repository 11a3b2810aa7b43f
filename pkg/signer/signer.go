// Package signer describes the boundary between transaction construction and the component
// holding the user's keys. Implementations sign, broadcast and report the outcome; nothing
// on this side of the boundary sees key material.
package signer

import (
	"context"
	"encoding/json"
)

// Signer signs a transaction on behalf of the current user and submits it to the network.
type Signer interface {
	SignAndSendTransaction(ctx context.Context, tx Transaction) (Outcome, error)
}

// Func adapts a function to the Signer interface.
type Func func(ctx context.Context, tx Transaction) (Outcome, error)

func (f Func) SignAndSendTransaction(ctx context.Context, tx Transaction) (Outcome, error) {
	return f(ctx, tx)
}

// Transaction is a batch of actions executed atomically against ReceiverID.
type Transaction struct {
	ReceiverID string
	Actions    []Action
}

// Outcome is what the signer reports after submission.
type Outcome struct {
	TransactionHash string
	// Raw is the final execution outcome as returned by the network, if the signer waited for it.
	Raw json.RawMessage
}

type ActionType string

const (
	CreateAccountType  ActionType = "CreateAccount"
	DeployContractType ActionType = "DeployContract"
	FunctionCallType   ActionType = "FunctionCall"
	TransferType       ActionType = "Transfer"
)

// Action is a protocol level action. The set is closed.
type Action interface {
	Type() ActionType
	isAction()
}

// FunctionCall calls MethodName on the receiver. Args is the JSON encoded argument object,
// Gas and Deposit are decimal integers in gas units and yoctoNEAR.
type FunctionCall struct {
	MethodName string
	Args       []byte
	Gas        string
	Deposit    string
}

// Transfer sends Deposit yoctoNEAR to the receiver.
type Transfer struct {
	Deposit string
}

// CreateAccount creates the receiver account. Only valid as the first action of a transaction.
type CreateAccount struct{}

// DeployContract deploys wasm Code to the receiver account.
type DeployContract struct {
	Code []byte
}

func (FunctionCall) Type() ActionType   { return FunctionCallType }
func (Transfer) Type() ActionType       { return TransferType }
func (CreateAccount) Type() ActionType  { return CreateAccountType }
func (DeployContract) Type() ActionType { return DeployContractType }

func (FunctionCall) isAction()   {}
func (Transfer) isAction()       {}
func (CreateAccount) isAction()  {}
func (DeployContract) isAction() {}
