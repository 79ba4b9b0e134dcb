package answer

import (
	"fmt"
	"strings"

	"github.com/qvidal/aor/internal/questionnaire"
	"github.com/qvidal/aor/internal/storage"
)

// systemPrompt fixes the assistant role and the output schema. The model
// must emit exactly one JSON object, nothing else.
const systemPrompt = `Tu es un assistant spécialisé dans la réponse aux appels d'offre.
Tu réponds de manière précise et professionnelle en te basant uniquement sur les extraits de connaissances fournis.
Tu réponds UNIQUEMENT avec un objet JSON au format suivant, sans aucun texte avant ou après :
{
    "reponse": "Contenu de la réponse",
    "confiance": 0.85,
    "sources": ["identifiant1", "identifiant2"]
}
Le champ "confiance" est un nombre entre 0 et 1.
Le champ "sources" ne contient que des identifiants d'extraits listés dans la question.`

// userPrompt lays out the question and the ranked context chunks, each
// tagged with its chunk id so the model can cite it.
func userPrompt(question questionnaire.Question, chunks []storage.ScoredChunk) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Question : %s\n", question.Text)
	if question.Category != "" {
		fmt.Fprintf(&b, "Catégorie : %s\n", question.Category)
	}
	b.WriteString("\n")

	if len(chunks) == 0 {
		b.WriteString("Aucun extrait pertinent n'a été trouvé dans la base de connaissances pour cette question.\n")
		b.WriteString("Indique dans ta réponse que l'information n'est pas disponible, avec une confiance faible et une liste de sources vide.\n")
	} else {
		b.WriteString("Extraits de connaissances disponibles :\n\n")
		for _, chunk := range chunks {
			fmt.Fprintf(&b, "[%s] (%s)\n%s\n\n", chunk.ChunkID, chunk.SourcePath, chunk.Text)
		}
	}

	b.WriteString("\nRéponds UNIQUEMENT avec l'objet JSON demandé.")
	return b.String()
}

// repairPrompt re-prompts after an invalid output, quoting it back with an
// explicit correction.
func repairPrompt(question questionnaire.Question, chunks []storage.ScoredChunk, invalidOutput string) string {
	var b strings.Builder

	b.WriteString(userPrompt(question, chunks))
	b.WriteString("\n\nTa réponse précédente n'était pas un objet JSON valide :\n")
	b.WriteString(invalidOutput)
	b.WriteString("\n\nRéponds UNIQUEMENT avec un objet JSON valide au format demandé, sans aucun autre texte.")
	return b.String()
}
