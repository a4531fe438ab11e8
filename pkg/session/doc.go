/*
Package session serializes edits to stored documents.

Every read-modify-write on a document runs under a per-document lock. Locks
are reference counted so idle documents hold no memory, and an optional
DistributedLocker extends the exclusion across replicas sharing a store.
*/
package session
