package core

import (
	"math/big"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slices"
)

var (
	accountIDRegexp = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)
	maxU128         = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	maxU64          = new(big.Int).SetUint64(^uint64(0))
	validate        = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("near_account", func(fl validator.FieldLevel) bool {
		return IsValidAccountID(fl.Field().String())
	})
	_ = v.RegisterValidation("u128", func(fl validator.FieldLevel) bool {
		return isUint(fl.Field().String(), maxU128)
	})
	return v
}

// IsValidAccountID checks a NEAR account id: 2 to 64 characters of lowercase alphanumerics
// separated by single '-', '_' or '.'.
func IsValidAccountID(id string) bool {
	if len(id) < 2 || len(id) > 64 {
		return false
	}
	return accountIDRegexp.MatchString(id)
}

// IsU128 checks that s is a decimal integer fitting into an unsigned 128-bit number.
func IsU128(s string) bool {
	return isUint(s, maxU128)
}

func isUint(s string, max *big.Int) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	n, ok := new(big.Int).SetString(s, 10)
	return ok && n.Cmp(max) <= 0
}

type actionValidator struct{}

func (actionValidator) VisitTransfer(a TransferAction) error {
	if !IsU128(a.Amount) {
		return NewValidationError("amount", "must be a yoctoNEAR integer")
	}
	return nil
}

func (actionValidator) VisitFunctionCall(a FunctionCallAction) error {
	if a.MethodName == "" {
		return NewValidationError("method_name", "must not be empty")
	}
	if !IsU128(a.Deposit) {
		return NewValidationError("deposit", "must be a yoctoNEAR integer")
	}
	// the contract casts gas to u64
	if !isUint(a.Gas, maxU64) {
		return NewValidationError("gas", "must be an integer number of gas units")
	}
	return nil
}

func (actionValidator) VisitAddMember(a AddMemberAction) error {
	if !IsValidAccountID(a.Member) {
		return NewValidationError("member", "must be a valid account id")
	}
	return nil
}

func (actionValidator) VisitRemoveMember(a RemoveMemberAction) error {
	if !IsValidAccountID(a.Member) {
		return NewValidationError("member", "must be a valid account id")
	}
	return nil
}

func (actionValidator) VisitChangeNumConfirmations(a ChangeNumConfirmationsAction) error {
	if a.NumConfirmations < 1 {
		return NewValidationError("num_confirmations", "must be at least 1")
	}
	return nil
}

// ValidateAction checks kind-specific required fields of an action.
func ValidateAction(a Action) error {
	if a == nil {
		return NewValidationError("actions", "must not contain empty actions")
	}
	return a.Accept(actionValidator{})
}

// Validate checks the request before it is submitted with add_request.
func (r RequestInput) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	for _, a := range r.Actions {
		if err := ValidateAction(a); err != nil {
			return err
		}
	}
	return nil
}

// CreateWalletParams describes a wallet deployed by the factory as <Name>.<factory>.
type CreateWalletParams struct {
	Name             string   `json:"name" validate:"required"`
	Members          []string `json:"members" validate:"min=1,dive,near_account"`
	NumConfirmations uint32   `json:"num_confirmations" validate:"min=1"`
	// Deposit is attached decimal NEAR funding the new account and its storage.
	Deposit string `json:"-"`
}

func (p CreateWalletParams) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	// the factory can only create direct sub-accounts
	if strings.Contains(p.Name, ".") || !IsValidAccountID(p.Name+".factory") {
		return NewValidationError("name", "must be a valid account name")
	}
	return validateMembership(p.Members, p.NumConfirmations)
}

// DeployWalletParams describes a wallet deployed directly to an account created by the signer.
type DeployWalletParams struct {
	AccountID        string   `json:"account_id" validate:"required,near_account"`
	Members          []string `json:"members" validate:"min=1,dive,near_account"`
	NumConfirmations uint32   `json:"num_confirmations" validate:"min=1"`
	// InitialBalance is yoctoNEAR transferred to the new account.
	InitialBalance string `json:"initial_balance" validate:"u128"`
	Code           []byte `json:"code" validate:"min=1"`
}

func (p DeployWalletParams) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	return validateMembership(p.Members, p.NumConfirmations)
}

func validateMembership(members []string, numConfirmations uint32) error {
	if int(numConfirmations) > len(members) {
		return NewValidationError("num_confirmations", "must be between 1 and the number of members")
	}
	sorted := slices.Clone(members)
	slices.Sort(sorted)
	if len(slices.Compact(sorted)) != len(members) {
		return NewValidationError("members", "must be unique")
	}
	return nil
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		fe := fieldErrors[0]
		return NewValidationError(fieldName(fe), reasonFor(fe))
	}
	return err
}

// fieldName returns the json name of the failed field, without the index of a slice element.
func fieldName(fe validator.FieldError) string {
	name, _, _ := strings.Cut(fe.Field(), "[")
	return name
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "near_account":
		return "must be a valid account id"
	case "u128":
		return "must be a yoctoNEAR integer"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " element(s)"
		}
		return "must be at least " + fe.Param()
	}
	return "failed " + fe.Tag() + " check"
}
