package ledger

import "regexp"

// accountIDPattern matches Stellar-style public account ids: a G prefix
// followed by 55 upper-case alphanumerics.
var accountIDPattern = regexp.MustCompile(`^G[A-Z0-9]{55}$`)

// ValidAccountID reports whether id is a syntactically valid account id
func ValidAccountID(id string) bool {
	return accountIDPattern.MatchString(id)
}

// ValidateAccountID returns an InvalidAddress error for malformed ids
func ValidateAccountID(id string) error {
	if !ValidAccountID(id) {
		return invalidAddress(id)
	}
	return nil
}
