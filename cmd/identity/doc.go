// Package identity holds registered accounts: the Account model, the Store
// boundary used by the session service, and its Postgres and in-memory
// implementations.
//
// Emails are unique and compared exactly as stored, after trimming
// surrounding whitespace. Credential digests never leave this package's
// callers through any API response.
package identity
