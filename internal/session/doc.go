// Package session defines the application conversation carried over the
// protocol: login, registration, notices and logout.
//
// Ownership boundary:
// - request/response message types and their field validation
// - the Envelope that names a request kind on a server connection
//
// Conversation:
//
//	client -> Envelope{login|register}   server -> LoginResult
//	client -> Envelope{notice|logout}    server -> Acknowledgement
package session
