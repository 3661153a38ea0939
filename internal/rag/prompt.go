package rag

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an assistant for question-answering tasks. " +
	"Use only the retrieved context below to answer the question. " +
	"If the context does not contain the answer, say that you don't know. " +
	"Use three sentences maximum and keep the answer concise."

func buildPrompt(question string, results []SearchResult) string {
	var b strings.Builder

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\n---CONTEXT START---\n")
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fmt.Sprintf("[%d] (page %d)\n", i+1, r.Chunk.Page))
		b.WriteString(r.Chunk.Text)
	}
	b.WriteString("\n---CONTEXT END---\n\nAnswer:")

	return b.String()
}
