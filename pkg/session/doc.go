/*
Package session serializes access to per-user records.

Every read-modify-write of a user's record runs under a per-user mutex. When a
DistributedLocker is configured the same critical section is also guarded across
replicas. Store failures are reported as domain.ErrPersistence.
*/
package session
