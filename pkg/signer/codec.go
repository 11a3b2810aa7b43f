package signer

import (
	"encoding/base64"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// MarshalJSON encodes the transaction the way browser wallets accept it:
// {"receiverId":"...","actions":[{"type":"FunctionCall","params":{...}}]}.
func (tx Transaction) MarshalJSON() ([]byte, error) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	var encodeErr error
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("receiverId")
		e.Str(tx.ReceiverID)
		e.FieldStart("actions")
		e.Arr(func(e *jx.Encoder) {
			for i, a := range tx.Actions {
				if err := encodeAction(e, a); err != nil && encodeErr == nil {
					encodeErr = errors.Wrapf(err, "action %d", i)
				}
			}
		})
	})
	if encodeErr != nil {
		return nil, encodeErr
	}
	return append([]byte(nil), e.Bytes()...), nil
}

func encodeAction(e *jx.Encoder, a Action) error {
	if a == nil {
		return errors.New("nil action")
	}
	var err error
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("type")
		e.Str(string(a.Type()))
		e.FieldStart("params")
		switch a := a.(type) {
		case FunctionCall:
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("methodName")
				e.Str(a.MethodName)
				e.FieldStart("args")
				if len(a.Args) == 0 {
					e.ObjEmpty()
				} else if jx.Valid(a.Args) {
					e.Raw(a.Args)
				} else {
					err = fmt.Errorf("%s args are not valid json", a.MethodName)
					e.Null()
				}
				e.FieldStart("gas")
				e.Str(a.Gas)
				e.FieldStart("deposit")
				e.Str(a.Deposit)
			})
		case Transfer:
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("deposit")
				e.Str(a.Deposit)
			})
		case CreateAccount:
			e.ObjEmpty()
		case DeployContract:
			e.Obj(func(e *jx.Encoder) {
				e.FieldStart("code")
				e.Str(base64.StdEncoding.EncodeToString(a.Code))
			})
		default:
			err = fmt.Errorf("unsupported action %T", a)
			e.Null()
		}
	})
	return err
}
