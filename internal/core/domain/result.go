package domain

// AuthenticateResult is the outcome of an authentication attempt.
// Exactly one of Error or Subject is populated.
type AuthenticateResult struct {
	Error                string  `json:"error,omitempty"`
	Subject              string  `json:"subject,omitempty"`
	DisplayName          string  `json:"display_name,omitempty"`
	Claims               []Claim `json:"claims,omitempty"`
	AuthenticationMethod string  `json:"authentication_method,omitempty"`
	IdentityProvider     string  `json:"identity_provider,omitempty"`
}

// NewAuthenticateError builds a failed result carrying a displayable message.
func NewAuthenticateError(message string) *AuthenticateResult {
	if message == "" {
		message = "authentication failed"
	}
	return &AuthenticateResult{Error: message}
}

// NewAuthenticateSuccess builds a successful result for a local sign-in.
func NewAuthenticateSuccess(subject, displayName string, claims []Claim) *AuthenticateResult {
	if claims == nil {
		claims = []Claim{}
	}
	return &AuthenticateResult{Subject: subject, DisplayName: displayName, Claims: claims}
}

// NewExternalAuthenticateSuccess builds a successful result tagged with the federated provider.
func NewExternalAuthenticateSuccess(subject, displayName string, claims []Claim, provider string) *AuthenticateResult {
	result := NewAuthenticateSuccess(subject, displayName, claims)
	result.AuthenticationMethod = AuthenticationMethodExternal
	result.IdentityProvider = provider
	return result
}

// IsError reports whether the attempt failed.
func (r *AuthenticateResult) IsError() bool {
	return r != nil && r.Error != ""
}

// Result is the soft outcome of a mutation: success, or an ordered list of
// human-readable errors that are safe to show.
type Result struct {
	Errors []string `json:"errors,omitempty"`
}

// Success returns a successful Result.
func Success() Result {
	return Result{}
}

// Failure returns a failed Result. Blank messages are dropped; if none remain a generic one is used.
func Failure(messages ...string) Result {
	errs := make([]string, 0, len(messages))
	for _, m := range messages {
		if m != "" {
			errs = append(errs, m)
		}
	}
	if len(errs) == 0 {
		errs = append(errs, "operation failed")
	}
	return Result{Errors: errs}
}

// IsSuccess reports whether no errors were recorded.
func (r Result) IsSuccess() bool {
	return len(r.Errors) == 0
}

// FirstError returns the first message, or "" on success.
func (r Result) FirstError() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0]
}

// ValueResult pairs a Result with a payload that is only meaningful on success.
type ValueResult[T any] struct {
	Result
	Value T `json:"value"`
}

// SuccessWith wraps a payload into a successful ValueResult.
func SuccessWith[T any](value T) ValueResult[T] {
	return ValueResult[T]{Value: value}
}

// FailureOf converts a failed Result into a ValueResult of any payload type.
func FailureOf[T any](result Result) ValueResult[T] {
	return ValueResult[T]{Result: result}
}
