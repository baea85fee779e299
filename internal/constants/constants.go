package constants

const (
	AppName          = "quantum-auth-gate"
	GrantsFile       = "grants.json"
	GrantsDBFile     = "grants.db"
	PairingTokenFile = "extension_pair_token.txt"

	SchemaV1      = 1
	FilePerm      = 0o600
	DirectoryPerm = 0o700

	// AAD for the encrypted grants file (must match on decrypt).
	GrantsAAD = "quantumauth:gate:grants:v1"

	// Env var holding the grants file password. When empty and encryption is
	// enabled the CLI prompts on the terminal.
	GrantsPasswordEnv = "QA_GATE_GRANTS_PASSWORD"
)

// Storage drivers for the permission store.
const (
	StorageDriverFile   = "file"
	StorageDriverSQLite = "sqlite"
)
