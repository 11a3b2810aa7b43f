package cache

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// maxInlineArgs is the longest canonical argument string kept verbatim in a key.
const maxInlineArgs = 64

// ViewFunctionKey builds "<contract>:<method>:<args>" where args is the canonical JSON form
// of the call arguments. Long arguments are replaced with their xxhash digest.
// Every key for a contract starts with its id, so Invalidate(contractID) drops all of them.
func ViewFunctionKey(contractID, method string, args []byte) string {
	canonical := canonicalArgs(args)
	if len(canonical) > maxInlineArgs {
		canonical = "#" + strconv.FormatUint(xxhash.Sum64String(canonical), 16)
	}
	return contractID + ":" + method + ":" + canonical
}

// ViewAccountKey builds the key of a view_account result.
func ViewAccountKey(accountID string) string {
	return accountID + ":view_account"
}

// canonicalArgs re-encodes args with sorted object keys so equal argument objects share a key.
func canonicalArgs(args []byte) string {
	if len(bytes.TrimSpace(args)) == 0 {
		return "{}"
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(args)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(args)
	}
	return string(out)
}
