package core

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Actions is a list of actions encoded as the contract's internally tagged enum:
// {"type":"Transfer","amount":"1"}.
type Actions []Action

func (a Actions) MarshalJSON() ([]byte, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	if a == nil {
		e.ArrEmpty()
		return append([]byte(nil), e.Bytes()...), nil
	}
	e.ArrStart()
	for i, action := range a {
		if action == nil {
			return nil, fmt.Errorf("action %d is nil", i)
		}
		if err := EncodeAction(e, action); err != nil {
			return nil, err
		}
	}
	e.ArrEnd()
	return append([]byte(nil), e.Bytes()...), nil
}

func (a *Actions) UnmarshalJSON(data []byte) error {
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		*a = nil
		return d.Null()
	}
	var actions Actions
	err := d.Arr(func(d *jx.Decoder) error {
		action, err := DecodeAction(d)
		if err != nil {
			return err
		}
		actions = append(actions, action)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "decode actions")
	}
	*a = actions
	return nil
}

type actionEncoder struct {
	e *jx.Encoder
}

func (v actionEncoder) VisitTransfer(a TransferAction) error {
	v.e.FieldStart("amount")
	v.e.Str(a.Amount)
	return nil
}

func (v actionEncoder) VisitFunctionCall(a FunctionCallAction) error {
	v.e.FieldStart("method_name")
	v.e.Str(a.MethodName)
	v.e.FieldStart("args")
	v.e.Str(a.Args)
	v.e.FieldStart("deposit")
	v.e.Str(a.Deposit)
	v.e.FieldStart("gas")
	v.e.Str(a.Gas)
	return nil
}

func (v actionEncoder) VisitAddMember(a AddMemberAction) error {
	v.e.FieldStart("member")
	v.e.Str(a.Member)
	return nil
}

func (v actionEncoder) VisitRemoveMember(a RemoveMemberAction) error {
	v.e.FieldStart("member")
	v.e.Str(a.Member)
	return nil
}

func (v actionEncoder) VisitChangeNumConfirmations(a ChangeNumConfirmationsAction) error {
	v.e.FieldStart("num_confirmations")
	v.e.UInt32(a.NumConfirmations)
	return nil
}

// EncodeAction writes a single action object with its discriminant.
func EncodeAction(e *jx.Encoder, a Action) error {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(string(a.Kind()))
	if err := a.Accept(actionEncoder{e: e}); err != nil {
		return err
	}
	e.ObjEnd()
	return nil
}

// DecodeAction reads a single action object. The discriminant may appear at any position.
func DecodeAction(d *jx.Decoder) (Action, error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}
	var kind string
	err = jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "type" {
			return d.Skip()
		}
		s, err := d.Str()
		kind = s
		return err
	})
	if err != nil {
		return nil, err
	}
	switch ActionKind(kind) {
	case TransferKind:
		var a TransferAction
		err = decodeStringFields(raw, map[string]*string{"amount": &a.Amount})
		return a, err
	case FunctionCallKind:
		var a FunctionCallAction
		err = decodeStringFields(raw, map[string]*string{
			"method_name": &a.MethodName,
			"args":        &a.Args,
			"deposit":     &a.Deposit,
			"gas":         &a.Gas,
		})
		return a, err
	case AddMemberKind:
		var a AddMemberAction
		err = decodeStringFields(raw, map[string]*string{"member": &a.Member})
		return a, err
	case RemoveMemberKind:
		var a RemoveMemberAction
		err = decodeStringFields(raw, map[string]*string{"member": &a.Member})
		return a, err
	case ChangeNumConfirmationsKind:
		var a ChangeNumConfirmationsAction
		err = jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "num_confirmations" {
				return d.Skip()
			}
			n, err := d.UInt32()
			a.NumConfirmations = n
			return err
		})
		return a, err
	case "":
		return nil, errors.New("action without type")
	}
	return nil, fmt.Errorf("unknown action type %q", kind)
}

func decodeStringFields(raw jx.Raw, fields map[string]*string) error {
	return jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
		dst, ok := fields[string(key)]
		if !ok {
			return d.Skip()
		}
		s, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "field %s", key)
		}
		*dst = s
		return nil
	})
}
