// Package auth is the authentication and session lifecycle core of the
// Nestledger application: account creation, credential verification,
// access/refresh token issuance, refresh token revocation, and single-use
// password reset tokens.
//
// Token model:
//   - Access tokens are short-lived signed JWTs carrying the user id and
//     role. They are stateless; validity is signature + expiry only.
//   - Refresh tokens are longer-lived signed JWTs that are additionally
//     tracked server-side in the SessionRegistry. A refresh token can mint
//     new access tokens until it expires or is revoked by logout.
//   - Password reset tokens are opaque random values with a one hour
//     window. Only a sha256 digest is stored; consumption is a single
//     atomic conditional update, so a token can never authorize two
//     password changes.
//
// Domain resources (bills, incomes, gig sessions, maintenance tasks) live
// outside this module. They call Auther.Authenticate through the Protected
// middleware to obtain an identity and role, and AccountDirectory.IsAdmin
// to gate administrative operations. Nothing in this package reasons about
// their data.
//
// The client subpackage implements the consuming application's session
// manager: durable token storage, bearer attachment, and a single shared
// refresh-and-retry cycle on authorization failure.
package auth
