package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/arnac-io/nearmultisig/pkg/amount"
	"github.com/arnac-io/nearmultisig/pkg/core"
)

const displayPrecision = 4

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatYAML  outputFormat = "yaml"
	formatJSON  outputFormat = "json"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case formatTable, formatYAML, formatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q, use table, yaml or json", s)
}

// tabular is implemented by views that know how to render themselves as a table.
type tabular interface {
	header() table.Row
	rows() []table.Row
}

func render(w io.Writer, format outputFormat, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatTable:
		if t, ok := v.(tabular); ok {
			tw := table.NewWriter()
			tw.SetOutputMirror(w)
			tw.AppendHeader(t.header())
			tw.AppendSeparator()
			for _, r := range t.rows() {
				tw.AppendRow(r)
			}
			tw.Render()
			return nil
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

type balanceView struct {
	Account string `json:"account" yaml:"account"`
	Yocto   string `json:"yocto" yaml:"yocto"`
	NEAR    string `json:"near" yaml:"near"`
}

func newBalanceView(account, yocto string) balanceView {
	return balanceView{Account: account, Yocto: yocto, NEAR: amount.ToDecimal(yocto)}
}

type walletView struct {
	Wallet           string   `json:"wallet" yaml:"wallet"`
	Members          []string `json:"members" yaml:"members"`
	NumConfirmations uint32   `json:"num_confirmations" yaml:"num_confirmations"`
	RequestNonce     uint64   `json:"request_nonce" yaml:"request_nonce"`
	ActiveRequests   uint32   `json:"active_requests" yaml:"active_requests"`
	Actionable       int      `json:"actionable" yaml:"actionable"`
	Balance          string   `json:"balance,omitempty" yaml:"balance,omitempty"`
	Error            string   `json:"error,omitempty" yaml:"error,omitempty"`
}

type walletsView []walletView

func (walletsView) header() table.Row {
	return table.Row{"Wallet", "Members", "Threshold", "Pending", "Actionable", "Balance (NEAR)", "Error"}
}

func (v walletsView) rows() []table.Row {
	rows := make([]table.Row, 0, len(v))
	for _, w := range v {
		rows = append(rows, table.Row{w.Wallet, len(w.Members), w.NumConfirmations, w.ActiveRequests, w.Actionable, w.Balance, w.Error})
	}
	return rows
}

type requestView struct {
	ID            uint64   `json:"id" yaml:"id"`
	Requester     string   `json:"requester" yaml:"requester"`
	ReceiverID    string   `json:"receiver_id" yaml:"receiver_id"`
	Actions       []string `json:"actions" yaml:"actions"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Confirmations []string `json:"confirmations" yaml:"confirmations"`
	Required      uint32   `json:"required" yaml:"required"`
	Progress      string   `json:"progress" yaml:"progress"`
	Actionable    bool     `json:"actionable" yaml:"actionable"`
	Error         string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func newRequestView(r core.Request) requestView {
	return requestView{
		ID:            r.ID,
		Requester:     r.Requester,
		ReceiverID:    r.ReceiverID,
		Actions:       describeActions(r.Actions),
		Description:   r.Description,
		Confirmations: r.ConfirmedBy(),
		Required:      r.Required,
		Progress:      strconv.Itoa(int(r.Progress()*100)) + "%",
		Actionable:    r.Actionable(),
	}
}

type requestsView []requestView

func (requestsView) header() table.Row {
	return table.Row{"ID", "Requester", "Receiver", "Actions", "Confirmed", "Progress", "Description"}
}

func (v requestsView) rows() []table.Row {
	rows := make([]table.Row, 0, len(v))
	for _, r := range v {
		if r.Error != "" {
			rows = append(rows, table.Row{r.ID, "", "", r.Error, "", "", ""})
			continue
		}
		rows = append(rows, table.Row{
			r.ID,
			r.Requester,
			r.ReceiverID,
			strings.Join(r.Actions, "\n"),
			fmt.Sprintf("%d/%d", len(r.Confirmations), r.Required),
			r.Progress,
			r.Description,
		})
	}
	return rows
}

// actionDescriber renders a one-line summary of an action.
type actionDescriber struct {
	out *string
}

func (d actionDescriber) VisitTransfer(a core.TransferAction) error {
	*d.out = "transfer " + amount.Humanize(a.Amount, displayPrecision) + " NEAR"
	return nil
}

func (d actionDescriber) VisitFunctionCall(a core.FunctionCallAction) error {
	*d.out = fmt.Sprintf("call %s(%s) deposit %s NEAR gas %s", a.MethodName, a.Args, amount.Humanize(a.Deposit, displayPrecision), a.Gas)
	return nil
}

func (d actionDescriber) VisitAddMember(a core.AddMemberAction) error {
	*d.out = "add member " + a.Member
	return nil
}

func (d actionDescriber) VisitRemoveMember(a core.RemoveMemberAction) error {
	*d.out = "remove member " + a.Member
	return nil
}

func (d actionDescriber) VisitChangeNumConfirmations(a core.ChangeNumConfirmationsAction) error {
	*d.out = fmt.Sprintf("set threshold to %d", a.NumConfirmations)
	return nil
}

func describeActions(actions core.Actions) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		var s string
		if err := a.Accept(actionDescriber{out: &s}); err != nil {
			s = err.Error()
		}
		out = append(out, s)
	}
	return out
}

type historyView struct {
	Hash     string `json:"hash" yaml:"hash"`
	Time     string `json:"time" yaml:"time"`
	Signer   string `json:"signer" yaml:"signer"`
	Receiver string `json:"receiver" yaml:"receiver"`
	Method   string `json:"method,omitempty" yaml:"method,omitempty"`
	Deposit  string `json:"deposit" yaml:"deposit"`
	Success  bool   `json:"success" yaml:"success"`
	URL      string `json:"url" yaml:"url"`
}

type historyViews []historyView

func (historyViews) header() table.Row {
	return table.Row{"Time", "Signer", "Receiver", "Method", "Deposit (NEAR)", "OK", "Hash"}
}

func (v historyViews) rows() []table.Row {
	rows := make([]table.Row, 0, len(v))
	for _, h := range v {
		rows = append(rows, table.Row{h.Time, h.Signer, h.Receiver, h.Method, h.Deposit, h.Success, h.Hash})
	}
	return rows
}
