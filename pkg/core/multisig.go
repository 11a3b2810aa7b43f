package core

import (
	"encoding/json"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/exp/slices"
)

// ActionKind is the discriminant of a multisig action as it appears in the "type" field on the wire.
type ActionKind string

const (
	TransferKind               ActionKind = "Transfer"
	FunctionCallKind           ActionKind = "FunctionCall"
	AddMemberKind              ActionKind = "AddMember"
	RemoveMemberKind           ActionKind = "RemoveMember"
	ChangeNumConfirmationsKind ActionKind = "ChangeNumConfirmations"
)

// Action is one step of a multisig request. The set of implementations is closed:
// only the types of this package satisfy it.
type Action interface {
	Kind() ActionKind
	// Accept calls the visitor method matching the concrete action.
	Accept(v ActionVisitor) error
	isAction()
}

// ActionVisitor has a method per action kind. Adding a kind breaks every visitor at compile time.
type ActionVisitor interface {
	VisitTransfer(a TransferAction) error
	VisitFunctionCall(a FunctionCallAction) error
	VisitAddMember(a AddMemberAction) error
	VisitRemoveMember(a RemoveMemberAction) error
	VisitChangeNumConfirmations(a ChangeNumConfirmationsAction) error
}

// TransferAction sends Amount yoctoNEAR to the request receiver.
type TransferAction struct {
	Amount string
}

// FunctionCallAction calls MethodName on the request receiver.
// Args is passed to the callee as raw bytes, Deposit is in yoctoNEAR and Gas in gas units.
type FunctionCallAction struct {
	MethodName string
	Args       string
	Deposit    string
	Gas        string
}

type AddMemberAction struct {
	Member string
}

type RemoveMemberAction struct {
	Member string
}

type ChangeNumConfirmationsAction struct {
	NumConfirmations uint32
}

func (TransferAction) Kind() ActionKind               { return TransferKind }
func (FunctionCallAction) Kind() ActionKind           { return FunctionCallKind }
func (AddMemberAction) Kind() ActionKind              { return AddMemberKind }
func (RemoveMemberAction) Kind() ActionKind           { return RemoveMemberKind }
func (ChangeNumConfirmationsAction) Kind() ActionKind { return ChangeNumConfirmationsKind }

func (a TransferAction) Accept(v ActionVisitor) error     { return v.VisitTransfer(a) }
func (a FunctionCallAction) Accept(v ActionVisitor) error { return v.VisitFunctionCall(a) }
func (a AddMemberAction) Accept(v ActionVisitor) error    { return v.VisitAddMember(a) }
func (a RemoveMemberAction) Accept(v ActionVisitor) error { return v.VisitRemoveMember(a) }
func (a ChangeNumConfirmationsAction) Accept(v ActionVisitor) error {
	return v.VisitChangeNumConfirmations(a)
}

func (TransferAction) isAction()               {}
func (FunctionCallAction) isAction()           {}
func (AddMemberAction) isAction()              {}
func (RemoveMemberAction) isAction()           {}
func (ChangeNumConfirmationsAction) isAction() {}

// RequestInput is the payload of add_request. The requester is taken by the contract from the transaction signer.
type RequestInput struct {
	ReceiverID  string  `json:"receiver_id" validate:"required,near_account"`
	Actions     Actions `json:"actions" validate:"min=1"`
	Description string  `json:"description"`
}

// Request is a snapshot of a pending multisig request.
type Request struct {
	ID          uint64
	Requester   string
	ReceiverID  string
	Actions     Actions
	Description string
	// Confirmations holds members that confirmed the request.
	Confirmations mapset.Set[string]
	Required      uint32
}

type requestJSON struct {
	ID            uint64   `json:"id"`
	Requester     string   `json:"requester"`
	ReceiverID    string   `json:"receiver_id"`
	Actions       Actions  `json:"actions"`
	Description   string   `json:"description"`
	Confirmations []string `json:"confirmations"`
	Required      uint32   `json:"required"`
}

func (r Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(requestJSON{
		ID:            r.ID,
		Requester:     r.Requester,
		ReceiverID:    r.ReceiverID,
		Actions:       r.Actions,
		Description:   r.Description,
		Confirmations: r.ConfirmedBy(),
		Required:      r.Required,
	})
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var v requestJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Request{
		ID:            v.ID,
		Requester:     v.Requester,
		ReceiverID:    v.ReceiverID,
		Actions:       v.Actions,
		Description:   v.Description,
		Confirmations: mapset.NewThreadUnsafeSet(v.Confirmations...),
		Required:      v.Required,
	}
	return nil
}

// ConfirmedBy returns the confirming members in lexical order.
func (r Request) ConfirmedBy() []string {
	if r.Confirmations == nil {
		return nil
	}
	members := r.Confirmations.ToSlice()
	slices.Sort(members)
	return members
}

func (r Request) IsConfirmedBy(accountID string) bool {
	return r.Confirmations != nil && r.Confirmations.Contains(accountID)
}

func (r Request) NumConfirmed() int {
	if r.Confirmations == nil {
		return 0
	}
	return r.Confirmations.Cardinality()
}

// Actionable reports whether the request has collected enough confirmations for the contract to execute it.
func (r Request) Actionable() bool {
	return r.NumConfirmed() >= int(r.Required)
}

// Progress is the confirmation ratio for display, clamped at 1.
func (r Request) Progress() float64 {
	if r.Required == 0 {
		return 1
	}
	p := float64(r.NumConfirmed()) / float64(r.Required)
	if p > 1 {
		return 1
	}
	return p
}

type WalletInfo struct {
	Members          []string `json:"members"`
	NumConfirmations uint32   `json:"num_confirmations"`
	RequestNonce     uint64   `json:"request_nonce"`
	ActiveRequests   uint32   `json:"active_requests"`
}

func (w WalletInfo) IsMember(accountID string) bool {
	for _, m := range w.Members {
		if m == accountID {
			return true
		}
	}
	return false
}
