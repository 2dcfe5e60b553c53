// Package session holds the registry of active discovery sessions.
//
// A Registry keeps four maps (publish and subscribe sessions, publish and
// subscribe configurations) and the process-wide radio attachment behind a
// single lock. Compound transitions such as "remove the last session and
// detach" are methods of the registry so callers never coordinate locking
// themselves.
//
// Attachment lifecycle:
//
//	none ──AcquireAttachment──▶ attaching ──CompleteAttach──▶ live
//	                                │                          │
//	                           FailAttach              Release/ReleaseAll
//	                                ▼                   (both kinds empty)
//	                              none                         ▼
//	                                                        detached
//
// A detached attachment is never handed out again; the next
// AcquireAttachment starts a fresh attach.
package session
