package http

import (
	"time"

	"github.com/quantumauth-io/quantum-auth-gate/internal/permissions"
)

type extensionResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type pairResp struct {
	OK               bool   `json:"ok"`
	PairingToken     string `json:"pairingToken"`
	PairingTokenPath string `json:"pairingTokenPath,omitempty"`
}

type Pairing struct {
	CodeHash  []byte
	ExpiresAt time.Time
	Used      bool
	Token     string
}

type pairExchangeReq struct {
	PairID string `json:"pair_id"`
	Code   string `json:"code"`
}

type pairExchangeResp struct {
	OK     bool   `json:"ok"`
	Token  string `json:"token"`
	Header string `json:"header"`
}

type revokeReq struct {
	AccountAddress string `json:"accountAddress"`
}

type selectAccountReq struct {
	Address string `json:"address"`
}

type defaultWalletReq struct {
	DefaultWallet *bool `json:"defaultWallet"`
}

type grantsResp struct {
	Grants []permissions.Grant `json:"grants"`
}
