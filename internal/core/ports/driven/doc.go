// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - EmbeddingService: Maps text to fixed-dimension vectors (remote service)
//   - VectorIndex: Stores vectors and answers nearest-neighbour queries
//   - LLMService: Invokes the remote generation model
//   - CorpusStore: Durable chunk metadata and provenance
//   - SessionStore: Query/answer audit trail and conversation history
//
// The three remote-service ports (EmbeddingService, VectorIndex, LLMService)
// are consumed, not owned: the engine treats them as opaque collaborators
// reached over the network, wrapped uniformly in bounded retry at the
// adapter boundary. The two stores are the only mutable shared resources;
// the query path reads them but never mutates corpus data.
package driven
