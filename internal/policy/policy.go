// Package policy decides whether a granted origin may run a privileged call.
// Every check is a pure function of the method, its params and the grant.
package policy

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
	"github.com/quantumauth-io/quantum-auth-gate/internal/rpc"
)

// ErrUnauthorizedSigner is returned when the call names a signing account
// other than the one the grant covers.
var ErrUnauthorizedSigner = errors.New("signer not authorized for origin")

// Check applies the rule for m's family.
func Check(m rpc.Method, params []json.RawMessage, g permissions.Grant) error {
	switch m.Family() {
	case rpc.FamilyAccounts, rpc.FamilyPassThrough, rpc.FamilyInternal:
		return nil
	case rpc.FamilyPersonalSign:
		return CheckPersonalSign(m, params, g)
	case rpc.FamilyTypedData:
		return CheckTypedData(params, g)
	case rpc.FamilyTransaction:
		return CheckTransaction(params, g)
	default:
		return errors.Newf("unhandled method family %s", m.Family())
	}
}

// CheckPersonalSign: personal_sign carries the signer in params[1], eth_sign in
// params[0].
func CheckPersonalSign(m rpc.Method, params []json.RawMessage, g permissions.Grant) error {
	idx := 1
	if m == rpc.MethodEthSign {
		idx = 0
	}
	signer, err := stringParam(params, idx)
	if err != nil {
		return errors.Wrapf(ErrUnauthorizedSigner, "%s: %v", m, err)
	}
	return matchSigner(signer, g)
}

// CheckTypedData: every eth_signTypedData variant carries the signer in params[0].
func CheckTypedData(params []json.RawMessage, g permissions.Grant) error {
	signer, err := stringParam(params, 0)
	if err != nil {
		return errors.Wrapf(ErrUnauthorizedSigner, "typed data: %v", err)
	}
	return matchSigner(signer, g)
}

type txFrom struct {
	From string `json:"from"`
}

// CheckTransaction requires params[0].from to be the granted account.
func CheckTransaction(params []json.RawMessage, g permissions.Grant) error {
	if len(params) == 0 {
		return errors.Wrap(ErrUnauthorizedSigner, "transaction: missing tx object")
	}
	var tx txFrom
	if err := json.Unmarshal(params[0], &tx); err != nil {
		return errors.Wrapf(ErrUnauthorizedSigner, "transaction: %v", err)
	}
	if strings.TrimSpace(tx.From) == "" {
		return errors.Wrap(ErrUnauthorizedSigner, "transaction: missing from")
	}
	return matchSigner(tx.From, g)
}

// Accounts is the answer to eth_accounts and eth_requestAccounts.
func Accounts(g permissions.Grant) []string {
	return []string{g.AccountAddress}
}

func stringParam(params []json.RawMessage, idx int) (string, error) {
	if idx >= len(params) {
		return "", errors.Newf("missing param %d", idx)
	}
	var s string
	if err := json.Unmarshal(params[idx], &s); err != nil {
		return "", errors.Newf("param %d is not a string", idx)
	}
	return s, nil
}

func matchSigner(signer string, g permissions.Grant) error {
	got, err := parseAddr(signer)
	if err != nil {
		return errors.Wrap(ErrUnauthorizedSigner, err.Error())
	}
	want, err := parseAddr(g.AccountAddress)
	if err != nil {
		return errors.Wrap(ErrUnauthorizedSigner, "grant account: "+err.Error())
	}
	if got != want {
		return errors.Wrapf(ErrUnauthorizedSigner, "signer %s", got.Hex())
	}
	return nil
}

func parseAddr(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, errors.New("missing address")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Newf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}
