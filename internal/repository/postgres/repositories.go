package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/identity-adapter/internal/repository"
)

// Stores groups the PostgreSQL store implementations sharing one pool.
//
// Expected tables (schema iam):
//
//	accounts        one row per account, unique normalized_username
//	account_claims  (id bigserial, account_id, claim_type, claim_value, value_type)
//	account_logins  primary key (provider, provider_subject_id)
//	roles           unique name
//	account_roles   (account_id, role_id)
//
// Child tables reference accounts and roles with ON DELETE CASCADE.
type Stores struct {
	Accounts *AccountStore
	Roles    *RoleStore
}

// NewStores wires all stores backed by the provided pool.
func NewStores(pool *pgxpool.Pool, opts repository.StoreOptions) *Stores {
	return &Stores{
		Accounts: NewAccountStore(pool, opts),
		Roles:    NewRoleStore(pool),
	}
}
