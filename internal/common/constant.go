package common

// Development credentials used when neither the environment nor a config
// file provides tokens.
const (
	DefaultMasterToken = "master-dev-token"
	DefaultOpToken     = "operator-dev-token"
)

// DefaultOfficeName is the office seeded into a fresh store document.
const DefaultOfficeName = "Oficina Central"
