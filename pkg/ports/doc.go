/*
Package ports defines the driven ports (interfaces) of the form relay.

These interfaces decouple the orchestrator from storage backends, form sources and
text-generation providers.

# Key Interfaces

  - StateStore: persists one Record per user (credential hash and sessions).
  - FormLoader: resolves form definitions by id.
  - Generator: the black-box text-generation service.
  - DistributedLocker: serializes access to a user's record across replicas.
*/
package ports
