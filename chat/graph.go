package chat

import (
	"github.com/hupe1980/chatgraph/graph"
)

// buildGraph wires the fixed turn topology over the pipeline's node methods.
//
//	loadSession -> guardrailInput -> triageRelevance -> triageFaq -> triageIntent
//	triageIntent -> bundleTriageResponse            (short-circuit)
//	             -> buildPrompt -> callLlm <-> executeTools -> bundleSources
//	both paths   -> validateSources -> validateTone -> guardrailOutput
//	guardrailOutput -> updateMemory -> saveSession -> formatResponse
//	                -> formatResponse               (memory off)
func (p *pipeline) buildGraph() (*graph.Graph, error) {
	sg := graph.NewStateGraph(NewStateSchema())

	sg.AddNode(NodeLoadSession, p.loadSession)
	sg.AddNode(NodeGuardrailInput, p.guardrailInput)
	sg.AddNode(NodeTriageRelevance, p.triageRelevance)
	sg.AddNode(NodeTriageFAQ, p.triageFaq)
	sg.AddNode(NodeTriageIntent, p.triageIntent)
	sg.AddNode(NodeBundleTriageResponse, p.bundleTriageResponse)
	sg.AddNode(NodeBuildPrompt, p.buildPrompt)
	sg.AddNode(NodeCallLLM, p.callLlm)
	sg.AddNode(NodeExecuteTools, p.executeTools)
	sg.AddNode(NodeBundleSources, p.bundleSources)
	sg.AddNode(NodeValidateSources, p.validateSources)
	sg.AddNode(NodeValidateTone, p.validateTone)
	sg.AddNode(NodeGuardrailOutput, p.guardrailOutput)
	sg.AddNode(NodeUpdateMemory, p.updateMemory)
	sg.AddNode(NodeSaveSession, p.saveSession, func(n *graph.Node) { n.Detached = true })
	sg.AddNode(NodeFormatResponse, p.formatResponse)

	sg.SetEntryPoint(NodeLoadSession)
	sg.AddEdge(NodeLoadSession, NodeGuardrailInput)
	sg.AddEdge(NodeGuardrailInput, NodeTriageRelevance)
	sg.AddEdge(NodeTriageRelevance, NodeTriageFAQ)
	sg.AddEdge(NodeTriageFAQ, NodeTriageIntent)

	sg.AddConditionalEdges(NodeTriageIntent, p.routeAfterTriage, map[string]string{
		NodeBundleTriageResponse: NodeBundleTriageResponse,
		NodeBuildPrompt:          NodeBuildPrompt,
	})

	sg.AddEdge(NodeBuildPrompt, NodeCallLLM)
	sg.AddConditionalEdges(NodeCallLLM, p.routeAfterLlm, map[string]string{
		NodeExecuteTools:  NodeExecuteTools,
		NodeBundleSources: NodeBundleSources,
	})
	sg.AddEdge(NodeExecuteTools, NodeCallLLM)

	sg.AddEdge(NodeBundleTriageResponse, NodeValidateSources)
	sg.AddEdge(NodeBundleSources, NodeValidateSources)
	sg.AddEdge(NodeValidateSources, NodeValidateTone)
	sg.AddEdge(NodeValidateTone, NodeGuardrailOutput)

	sg.AddConditionalEdges(NodeGuardrailOutput, p.routeAfterGuardrail, map[string]string{
		NodeUpdateMemory:   NodeUpdateMemory,
		NodeFormatResponse: NodeFormatResponse,
	})
	sg.AddEdge(NodeUpdateMemory, NodeSaveSession)
	sg.AddEdge(NodeSaveSession, NodeFormatResponse)
	sg.SetFinishPoint(NodeFormatResponse)

	return sg.Compile()
}
