// Package rag assembles retrieved chunks and a question into a grounded
// prompt and hands it to the language model.
package rag

import (
	"fmt"
	"strings"

	"github.com/cinevec/cinevec/internal/models"
)

const systemInstruction = "You are a helpful movie expert assistant. " +
	"Answer the user's question based ONLY on the provided context. " +
	"If the context does not contain the answer, say that you don't know. " +
	"Be concise and mention specific titles from the context when relevant."

// emptyContextAnswer is returned without consulting the model when retrieval
// finds nothing.
const emptyContextAnswer = "I could not find anything in the catalog related to your question. " +
	"Try rephrasing it, or ingest more documents."

// BuildPrompt renders the chunks and the question into a single prompt.
// Chunks appear in retrieval order, numbered from 1.
func BuildPrompt(question string, chunks []models.ScoredChunk) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\nContext:\n")
	for i, chunk := range chunks {
		b.WriteString(FormatChunk(i+1, chunk))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nUser Question: %s\n\nAnswer:", question)
	return b.String()
}

// FormatChunk renders one context block. Catalog rows carry structured
// fields; plain documents only have their text and source.
func FormatChunk(n int, chunk models.ScoredChunk) string {
	if chunk.Title == "" {
		return fmt.Sprintf("[%d] (%s) %s", n, chunk.SourceID, chunk.Text)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", n, chunk.Title)
	if year := releaseYear(chunk.ReleaseDate); year != "" {
		fmt.Fprintf(&b, " (%s)", year)
	}
	if chunk.Tags != "" {
		fmt.Fprintf(&b, " - Genres: %s", chunk.Tags)
	}
	if chunk.Rating > 0 {
		fmt.Fprintf(&b, " - Rating: %.1f", chunk.Rating)
	}
	if plot := firstNonEmpty(chunk.Description, chunk.Text); plot != "" {
		fmt.Fprintf(&b, " - Plot: %s", plot)
	}
	return b.String()
}

func releaseYear(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
