// Package dialect hides the differences between the four supported SQL
// engines behind one connection contract.
//
// # Variants
//
// Every variant owns exactly one live session to one endpoint:
//
//   - [MSSQL]: SQL Server family, github.com/microsoft/go-mssqldb
//   - [MySQL]: MySQL and MariaDB, github.com/go-sql-driver/mysql
//   - [Postgres]: PostgreSQL, github.com/jackc/pgx/v5
//   - [Oracle]: Oracle Database, github.com/sijms/go-ora/v2
//
// Callers obtain a variant through [Create] (or a [Factory]) and only ever see
// the [Conn] interface. Identity and computed column lookups are optional
// capabilities detected with a type assertion against [IdentityColumner] and
// [ComputedColumner].
//
// # Parameters
//
// Query text always uses the caller convention of named @key tokens. Each
// variant rewrites those tokens into its native placeholder syntax (see
// [Translate]) before the statement reaches the driver:
//
//	@key   SQL Server  named, bound with sql.Named
//	?      MySQL       positional, one value per occurrence
//	$n     PostgreSQL  numbered by first occurrence, repeats reuse $n
//	:key   Oracle      named, bound with sql.Named
//
// Tokens inside single-quoted literals, @@SYSTEM variables, and tokens with
// no matching parameter are left untouched.
//
// # Permission probing
//
// [Conn.CheckPermissions] measures effective privileges by attempting a
// SELECT, an INSERT and a DELETE instead of reading grant tables. The DELETE
// is attempted whenever the INSERT was issued, whatever its outcome, and its
// result is recorded on its own. The probe never creates or drops objects.
package dialect
