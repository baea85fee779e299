package rpc

// Method is a provider RPC method name. Names outside the known set are kept
// verbatim and classified as FamilyPassThrough.
type Method string

const (
	MethodAccounts        Method = "eth_accounts"
	MethodRequestAccounts Method = "eth_requestAccounts"

	MethodPersonalSign Method = "personal_sign"
	MethodEthSign      Method = "eth_sign"

	MethodSignTypedData   Method = "eth_signTypedData"
	MethodSignTypedDataV1 Method = "eth_signTypedData_v1"
	MethodSignTypedDataV3 Method = "eth_signTypedData_v3"
	MethodSignTypedDataV4 Method = "eth_signTypedData_v4"

	MethodSignTransaction Method = "eth_signTransaction"
	MethodSendTransaction Method = "eth_sendTransaction"

	MethodGetConfig        Method = "tally_getConfig"
	MethodSetClaimReferrer Method = "tally_setClaimReferrer"

	// MethodPassThrough is the zero Method. ParseMethod never returns it; any
	// unknown name keeps its own string and still reports FamilyPassThrough.
	MethodPassThrough Method = ""
)

// Push methods, sent with PushID.
const (
	PushGetConfig      = "tally_getConfig"
	PushAccountChanged = "tally_accountChanged"
)

// Family groups methods by the authorization rule that applies to them.
type Family int

const (
	FamilyPassThrough Family = iota
	FamilyAccounts
	FamilyPersonalSign
	FamilyTypedData
	FamilyTransaction
	FamilyInternal
)

func (f Family) String() string {
	switch f {
	case FamilyAccounts:
		return "accounts"
	case FamilyPersonalSign:
		return "personal_sign"
	case FamilyTypedData:
		return "typed_data"
	case FamilyTransaction:
		return "transaction"
	case FamilyInternal:
		return "internal"
	default:
		return "pass_through"
	}
}

func ParseMethod(name string) Method {
	return Method(name)
}

func (m Method) String() string { return string(m) }

func (m Method) Family() Family {
	switch m {
	case MethodAccounts, MethodRequestAccounts:
		return FamilyAccounts
	case MethodPersonalSign, MethodEthSign:
		return FamilyPersonalSign
	case MethodSignTypedData, MethodSignTypedDataV1, MethodSignTypedDataV3, MethodSignTypedDataV4:
		return FamilyTypedData
	case MethodSignTransaction, MethodSendTransaction:
		return FamilyTransaction
	case MethodGetConfig, MethodSetClaimReferrer:
		return FamilyInternal
	default:
		return FamilyPassThrough
	}
}

// IsSigning reports whether the method needs a signing popup.
func (m Method) IsSigning() bool {
	switch m.Family() {
	case FamilyPersonalSign, FamilyTypedData, FamilyTransaction:
		return true
	}
	return false
}
