package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/bookwise/internal/core/domain"
)

// Prompt construction is the no-hallucination boundary: the context block
// is the only source of facts the model is given, and the instructions
// forbid outside knowledge. This is a textual contract - the engine does
// not verify model output at runtime.

// corpusPrompt assembles the generation prompt for corpus mode. Each chunk
// is annotated with its ID so the answer can be traced back to its basis.
func corpusPrompt(question string, chunks []domain.RetrievedChunk) string {
	var context strings.Builder
	for _, chunk := range chunks {
		fmt.Fprintf(&context, "[chunk %s | %s / %s]\n%s\n\n", chunk.ChunkID, chunk.Chapter, chunk.Section, chunk.Text)
	}

	return fmt.Sprintf(`You are a helpful book assistant.
Use ONLY the context below to answer. Do not use outside knowledge.
If the answer is not present in the context, say:
%q

CONTEXT:
%s
QUESTION:
%s

ANSWER:
`, domain.RefusalText, context.String(), question)
}

// selectionPrompt assembles the generation prompt for selection mode.
// The answer is explicitly scoped to the provided passage only.
func selectionPrompt(question, selectedText string) string {
	return fmt.Sprintf(`You are a helpful book assistant.
The reader has selected a passage. Answer using ONLY the selected text
below. Do not use outside knowledge or any other part of the book.
If the selected text does not contain the answer, say:
%q

SELECTED TEXT:
%s

QUESTION:
%s

ANSWER:
`, domain.RefusalText, selectedText, question)
}
