package domain

// Claim type identifiers used on outbound claim sets.
const (
	ClaimSubject             = "sub"
	ClaimPreferredUsername   = "preferred_username"
	ClaimName                = "name"
	ClaimGivenName           = "given_name"
	ClaimFamilyName          = "family_name"
	ClaimEmail               = "email"
	ClaimEmailVerified       = "email_verified"
	ClaimPhoneNumber         = "phone_number"
	ClaimPhoneNumberVerified = "phone_number_verified"
	ClaimRole                = "role"
	ClaimSecurityStamp       = "security_stamp"

	// ClaimGenericName is the WS-Federation name claim some providers still emit.
	ClaimGenericName = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
)

// ClaimValueTypeBoolean tags claims whose value is "true" or "false".
const ClaimValueTypeBoolean = "http://www.w3.org/2001/XMLSchema#boolean"

// AuthenticationMethodExternal marks sessions established through a federated provider.
const AuthenticationMethodExternal = "external"

// Claim is a normalized (type, value) assertion about a principal.
// ValueType is informational and never takes part in comparisons.
type Claim struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	ValueType string `json:"value_type,omitempty"`
}

// NewClaim builds an untyped claim.
func NewClaim(claimType, value string) Claim {
	return Claim{Type: claimType, Value: value}
}

// NewBoolClaim builds a claim carrying "true" or "false" with the boolean value type.
func NewBoolClaim(claimType string, value bool) Claim {
	v := "false"
	if value {
		v = "true"
	}
	return Claim{Type: claimType, Value: v, ValueType: ClaimValueTypeBoolean}
}

// Equal reports (type, value) equality.
func (c Claim) Equal(other Claim) bool {
	return c.Type == other.Type && c.Value == other.Value
}

type claimKey struct {
	claimType string
	value     string
}

func keyOf(c Claim) claimKey {
	return claimKey{claimType: c.Type, value: c.Value}
}

// ContainsClaim reports whether claims holds an entry equal to target.
func ContainsClaim(claims []Claim, target Claim) bool {
	for _, c := range claims {
		if c.Equal(target) {
			return true
		}
	}
	return false
}

// FindClaim returns the first claim of the given type.
func FindClaim(claims []Claim, claimType string) (Claim, bool) {
	for _, c := range claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// ClaimsDifference returns the claims of incoming that are absent from existing,
// with set semantics: an incoming claim repeated twice is returned once.
// Order follows the first occurrence in incoming.
func ClaimsDifference(incoming, existing []Claim) []Claim {
	seen := make(map[claimKey]struct{}, len(existing)+len(incoming))
	for _, c := range existing {
		seen[keyOf(c)] = struct{}{}
	}

	result := make([]Claim, 0, len(incoming))
	for _, c := range incoming {
		k := keyOf(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, c)
	}
	return result
}

// WithoutClaimTypes returns claims minus every entry whose type is listed.
func WithoutClaimTypes(claims []Claim, types ...string) []Claim {
	drop := make(map[string]struct{}, len(types))
	for _, t := range types {
		drop[t] = struct{}{}
	}

	result := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if _, ok := drop[c.Type]; ok {
			continue
		}
		result = append(result, c)
	}
	return result
}

// FilterClaimTypes keeps only claims whose type is listed. An empty list keeps everything.
func FilterClaimTypes(claims []Claim, types []string) []Claim {
	if len(types) == 0 {
		return claims
	}

	keep := make(map[string]struct{}, len(types))
	for _, t := range types {
		keep[t] = struct{}{}
	}

	result := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if _, ok := keep[c.Type]; ok {
			result = append(result, c)
		}
	}
	return result
}
