// Package model defines the language-model collaborator interface agents
// use for decision making, together with a MockModel for tests. Concrete
// provider adapters live in sub-packages (anthropic, openai); the decision
// content itself (prompt construction, response parsing) is entirely the
// caller's concern.
package model
