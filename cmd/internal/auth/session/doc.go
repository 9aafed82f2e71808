// Package session is the sidecar's session engine.
//
// Service composes the credential hasher, the token generator, the account
// store and a session Store into four operations: Signup, Signin,
// ResolveSession and Signout. A caller moves from anonymous to authenticated
// on Signin and back on Signout or expiry; there are no other states.
//
// Session secrets are opaque random strings. Stores persist only their
// digest and treat a row whose expires_at has passed as absent on read.
// Expired rows can be swept by the optional Reaper, which never touches the
// read path.
package session
