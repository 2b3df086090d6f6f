package models

// Subgraph names, also the intent labels returned by the LLM router.
const (
	SubgraphEscala      = "escala"
	SubgraphClinico     = "clinico"
	SubgraphOperacional = "operacional"
	SubgraphFinalizar   = "finalizar"
	SubgraphAuxiliar    = "auxiliar"
)

// KnownSubgraph reports whether name is one of the five routable subgraphs.
func KnownSubgraph(name string) bool {
	switch name {
	case SubgraphEscala, SubgraphClinico, SubgraphOperacional, SubgraphFinalizar, SubgraphAuxiliar:
		return true
	}
	return false
}
