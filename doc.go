// Package session is the client side session, authorization and live
// notification core of the ERP admin console. Business rules stay with the
// remote API; this package owns who is logged in and what they may see.
//
// Session store:
//   - Store keeps a single Principal slot persisted through a storage
//     Backend. Hydrate loads it once at boot and closes Ready; expired
//     credentials and roleless principals are dropped on the way in.
//   - Save and Clear write through to the backend and notify listeners
//     synchronously, so any decision taken after they return sees the new
//     principal.
//
// Auth gateway:
//   - Gateway wraps signin, signup, email verification and logout. A signin
//     answer without a credential or without roles is a failure and never
//     reaches the slot.
//   - Errors are go-errors values with stable text codes. Use
//     IsValidationError, IsAuthError, IsNetworkError and FieldErrors instead
//     of comparing messages.
//
// Authorization guard:
//   - Guard moves from Loading to Authorized or Denied once per instance.
//     Denied remembers the requested path in a RedirectStore and points at
//     the login path; ResumeTarget sends the user back after login.
//   - Authorize(principal, roles) is the one capability check shared by the
//     guard, VisibleMenu and the CLI.
//
// Activity sinks:
//   - ActivitySink receives login, logout, registration, verification and
//     guard events. Sinks run best effort (errors are logged).
//
// Notifications live in the notify package.
package session
