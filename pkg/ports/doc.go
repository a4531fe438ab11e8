/*
Package ports defines the driven ports (interfaces) for Loom.

These interfaces decouple the editor core from external implementations, so
documents can be kept in memory, on disk or in Redis, and operator libraries
can come from code, a loam repository or plain files.

# Key Interfaces

  - DocumentStore: persists documents by ID.
  - LibraryLoader: provides the operator definitions documents reference.
  - DistributedLocker: provides distributed locking for concurrent document edits.
  - Editor: the document operations served by the HTTP and MCP adapters.
*/
package ports
