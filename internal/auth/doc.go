// Package auth issues and verifies the bearer tokens that guard the HTTP API.
//
// Tokens are HS256 JWTs carrying a subject (the operator or automation
// account name) and a Role. Roles map statically to permissions:
//
//	viewer    read the directory, grid view and live outcome feed
//	operator  viewer + send commands and probe devices
//	admin     operator + force directory refreshes
//
// There is no user database. Tokens are minted with the "gridswitch token"
// subcommand using the configured secret and verified by signature only.
package auth
