package biz

import (
	"context"
	"fmt"

	"github.com/kart-io/bookrag/pkg/llm"
)

// Generator turns a question plus retrieved context into an answer
// using the chat provider.
type Generator struct {
	chatProvider llm.ChatProvider
	bookTitle    string
}

// NewGenerator creates a generator scoped to one book.
func NewGenerator(chatProvider llm.ChatProvider, bookTitle string) *Generator {
	return &Generator{
		chatProvider: chatProvider,
		bookTitle:    bookTitle,
	}
}

// systemPrompt constrains the model to the book and defines the
// small-talk behavior.
func (g *Generator) systemPrompt() string {
	return fmt.Sprintf(
		"You are a helpful assistant for the book %q. "+
			"Your job is to answer questions ONLY about this book using the provided context. "+
			"Rules:\n"+
			"- If the user sends a greeting (hi, hello, hey, etc.), reply with a friendly greeting "+
			"and say: \"Ask me anything about the book '%s'!\"\n"+
			"- If the user says bye/goodbye, reply with a friendly goodbye.\n"+
			"- For all other questions, answer ONLY using the context provided below. "+
			"If the answer is not in the context, say \"I couldn't find that in the book.\"\n"+
			"- Be concise and accurate.",
		g.bookTitle, g.bookTitle)
}

// buildPrompt frames the retrieved context and the question as one
// completion prompt.
func buildPrompt(question, context string) string {
	return fmt.Sprintf("Context from the book:\n---\n%s\n---\n\nUser: %s\n\nAssistant:", context, question)
}

// Generate produces the complete answer.
func (g *Generator) Generate(ctx context.Context, question, contextText string) (string, error) {
	answer, err := g.chatProvider.Generate(ctx, buildPrompt(question, contextText), g.systemPrompt())
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// GenerateStream produces the answer as a token stream. The caller
// owns the stream and must close it.
func (g *Generator) GenerateStream(ctx context.Context, question, contextText string) (llm.TokenStream, error) {
	stream, err := g.chatProvider.GenerateStream(ctx, buildPrompt(question, contextText), g.systemPrompt())
	if err != nil {
		return nil, fmt.Errorf("start answer stream: %w", err)
	}
	return stream, nil
}
