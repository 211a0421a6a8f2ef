package composer

import (
	"strings"
)

// Role selects the instructional framing of an answer. It does not affect retrieval.
type Role string

const (
	RoleStudent    Role = "student"
	RoleTeacher    Role = "teacher"
	RoleResearcher Role = "researcher"
	RoleGeneral    Role = "general"
)

// ParseRole maps a user-supplied role name to a Role. Unknown or empty
// values become RoleGeneral.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleStudent, RoleTeacher, RoleResearcher:
		return r
	default:
		return RoleGeneral
	}
}

var roleInstructions = map[Role]string{
	RoleStudent: "The reader is a student. Use plain language, walk through the idea step by step " +
		"and add a short example where it helps. Keep the tone encouraging.",
	RoleTeacher: "The reader is a teacher. Give a detailed explanation, point out the concepts a class " +
		"would struggle with and suggest ways to present the material.",
	RoleResearcher: "The reader is a researcher. Be thorough and precise, quote the passages you rely on " +
		"and mention open questions or directions for further reading.",
	RoleGeneral: "Answer clearly and directly in a friendly tone.",
}

// Instruction returns the role-specific block of the prompt.
func (r Role) Instruction() string {
	if s, ok := roleInstructions[r]; ok {
		return s
	}
	return roleInstructions[RoleGeneral]
}

// DefaultSystemInstruction is the persona sent as the model's system instruction.
const DefaultSystemInstruction = `You are papermind, an assistant that answers questions about a document the user uploaded.

Rules:
- Base your answer on the DOCUMENT CONTEXT supplied with each question.
- If the context does not cover the question and it is a simple or general one, you may answer from general knowledge and say so.
- If the context does not contain the answer to a question about the document, say that the document does not cover it. Do not make up facts, figures or citations.
- Prefer short paragraphs and lists over long blocks of text.`

// Prompt is the text sent to the chat model for one turn.
type Prompt struct {
	System string
	User   string
}

// Composer builds prompts from retrieved context and the user's question.
type Composer struct {
	System string
}

// New creates a Composer. An empty system instruction selects DefaultSystemInstruction.
func New(system string) *Composer {
	if system == "" {
		system = DefaultSystemInstruction
	}
	return &Composer{System: system}
}

// Compose lays out the user turn as context, question, then role guidance.
func (c *Composer) Compose(message, context string, role Role) Prompt {
	var sb strings.Builder
	sb.WriteString("DOCUMENT CONTEXT:\n")
	sb.WriteString(strings.TrimSpace(context))
	sb.WriteString("\n\nUSER QUESTION:\n")
	sb.WriteString(strings.TrimSpace(message))
	sb.WriteString("\n\nINSTRUCTIONS:\n")
	sb.WriteString(role.Instruction())
	sb.WriteString("\nUse only the document context above to answer questions about the document.")

	return Prompt{System: c.System, User: sb.String()}
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
