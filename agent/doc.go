// Package agent implements the four role agents of the drone intelligence
// squad and the shared runtime they are built on. BaseAgent owns the
// lifecycle: it registers the role on the message bus, runs the receive
// loop, audits every delivered message to the COP and routes it to the
// role's handler. The role agents (CollectionProcessor, IntelligenceAnalyst,
// MissionPlanner, CollectionManager) implement the handlers, call the LLM
// for decisions and perform their privileged COP writes through the
// authority guard.
package agent
