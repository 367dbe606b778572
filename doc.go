// Package agentlab is the root of a collection of building blocks for LLM
// agents: DAG workflows, negotiation, conflict resolution, task allocation,
// coordination, planning, swarm simulations, retrieval-augmented generation
// and evaluation. The root package holds no code; depend on the
// subpackages directly:
//
//	import (
//	  "github.com/KamdynS/agentlab/workflow"
//	  "github.com/KamdynS/agentlab/rag"
//	  "github.com/KamdynS/agentlab/llm/openai"
//	)
//
// The agentlab command in cmd/agentlab exposes every package from the
// command line and over HTTP.
package agentlab
