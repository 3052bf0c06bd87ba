/*
Package ports defines the driven ports (interfaces) of the Opera engine.

These interfaces decouple the protocol layer from the chess implementation
and from the storage of analysis results.

# Key Interfaces

  - EngineCore: board state, search and engine-wide configuration.
  - AnalysisCache: search results keyed by position (memory or Redis).
*/
package ports
