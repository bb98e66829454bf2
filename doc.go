// Package academy is the identity and learning content core of the academy
// API: token issuance, credential recovery, route authorization and the
// projection of the program catalog for each role.
//
// Tokens:
//   - Four kinds are issued, access, refresh, setup and reset. Every kind is
//     signed with its own secret so a token can never be replayed as another
//     kind. Only access tokens carry a role, refresh reads the current role
//     of the identity again.
//
// Recovery:
//   - Setup and reset tokens are single use. Consuming one and writing the
//     new password happen in the same transaction.
//
// Activity sinks:
//   - ActivitySink is a best effort audit emitter used by the handlers and
//     the state machine. Sink errors are logged, never returned.
//
// Claims decoration:
//   - ClaimsDecorator runs before a token is signed and may only touch the
//     metadata claim.
package academy
