package domain

// Role groups accounts under a name.
type Role struct {
	ID          string
	Name        string
	Description string
}

// Persisted reports whether the store has assigned an identifier.
func (r *Role) Persisted() bool {
	return r != nil && r.ID != ""
}
