/*
Package domain contains the core models of the form relay.

It defines forms and their typed fields, the per-user persisted record with its
sessions, the results returned by the orchestrator and the error kinds shared by
every adapter. The package is free of I/O and persistence concerns.

# Key Entities

  - Form: an ordered list of Fields identified by a form id.
  - Field: one question with a FieldType, a prompt and optional choices.
  - Session: one user's traversal of a form (in_progress, completed or cancelled).
  - Record: everything persisted for one user (credential hash and sessions).
  - MessageSink: the outbound side of a chat transport.
*/
package domain
