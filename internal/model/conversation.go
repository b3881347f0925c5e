package model

// Conversation is a graded session reconstructed from its events.
// Derived, never stored: built on demand by the evaluator and discarded
// after scoring.
type Conversation struct {
	SessionID    string
	UserQuestion string
	FinalAnswer  string
	// ToolContext is every tool_end content of the session, joined in
	// trace order with " | ".
	ToolContext string
}
