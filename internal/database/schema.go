package database

import (
	"context"
	"log/slog"

	"github.com/surrealdb/surrealdb.go"
)

// AccessName is the record access method used for visitor sign-up and sign-in.
const AccessName = "account"

// schema defines the tables and the record access method. Every statement is
// idempotent so it can run on each start.
const schema = `
DEFINE TABLE IF NOT EXISTS users SCHEMALESS
	PERMISSIONS
		FOR select, update WHERE id = $auth.id
		FOR create, delete NONE;
DEFINE FIELD IF NOT EXISTS email ON users TYPE string ASSERT string::is::email($value);
DEFINE INDEX IF NOT EXISTS users_email ON users FIELDS email UNIQUE;

DEFINE TABLE IF NOT EXISTS profiles SCHEMALESS
	PERMISSIONS
		FOR select WHERE id = type::thing("profiles", meta::id($auth.id))
		FOR create, update, delete NONE;

DEFINE TABLE IF NOT EXISTS products SCHEMALESS
	PERMISSIONS
		FOR select WHERE published = true
		FOR create, update, delete NONE;
DEFINE INDEX IF NOT EXISTS products_created_at ON products FIELDS created_at;

DEFINE ACCESS IF NOT EXISTS account ON DATABASE TYPE RECORD
	SIGNUP (
		CREATE users CONTENT {
			email: string::lowercase($email),
			password: crypto::argon2::generate($password),
			metadata: $metadata,
			created_at: time::now()
		}
	)
	SIGNIN (
		SELECT * FROM users WHERE
			(email = string::lowercase($email) AND crypto::argon2::compare(password, $password))
			OR (reset_token != NONE AND reset_token = $reset_token AND reset_token_expires > time::now())
	)
	DURATION FOR TOKEN 1h, FOR SESSION 1h;
`

// DefineSchema applies the storefront schema. It needs a root connection.
func DefineSchema(ctx context.Context, conn DBConnection) error {
	ctx, cancel := withTimeout(ctx, conn.GetDBExecuteTimeout(), executeTimeoutKey)
	defer cancel()

	return conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		if err := Execute(ctx, db, schema, nil); err != nil {
			return WrapError(err, "define schema")
		}
		slog.InfoContext(ctx, "Database schema applied", "namespace", conn.GetDBNs(), "database", conn.GetDBDb())
		return nil
	})
}
