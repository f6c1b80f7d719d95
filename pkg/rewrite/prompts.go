package rewrite

import (
	"github.com/tmc/langchaingo/prompts"
	"github.com/xhad/regqa/internal/models"
)

const contextualTemplatePT = `Você é um assistente de reescrita de perguntas para um sistema de busca em documentos.

Reescreva a pergunta do usuário em uma versão autossuficiente e otimizada para busca nos regulamentos da Olimpíada Brasileira de Geografia.

Instruções:
1. Se a pergunta contém pronomes (ex: "ele", "ela", "isso", "aquilo") ou referências ao contexto anterior, resolva-os usando o histórico abaixo.
2. A pergunta reescrita deve fazer sentido mesmo sem o histórico.
3. Preserve a intenção e o significado da pergunta original.
4. Expanda termos abreviados ou contexto implícito quando ajudar a busca.
5. NÃO adicione informações que não estão implícitas na pergunta ou no histórico.
6. Mantenha a pergunta concisa.
7. Responda APENAS com a pergunta reescrita, sem explicações.

Histórico da Conversa:
{{.history}}

Pergunta Original:
{{.question}}

Pergunta Reescrita:`

const contextualTemplateEN = `You are a query rewriting assistant for a document search system.

Rewrite the user's question into a self-contained, search-optimized version for the Brazilian Geography Olympiad regulations.

Instructions:
1. If the question contains pronouns (e.g. "it", "this", "that", "they") or references to previous context, resolve them using the chat history below.
2. The rewritten question must make sense without the chat history.
3. Preserve the intent and meaning of the original question.
4. Expand abbreviated terms or implicit context when it helps the search.
5. Do NOT add information that is not implied by the question or the chat history.
6. Keep the question concise.
7. Answer ONLY with the rewritten question, without explanations.

Chat History:
{{.history}}

Original Question:
{{.question}}

Rewritten Question:`

const minimalTemplatePT = `Reescreva a seguinte pergunta para ser autossuficiente e otimizada para busca semântica nos regulamentos da Olimpíada Brasileira de Geografia.

Remova pronomes ambíguos, expanda contexto implícito e não adicione informações novas.

Responda APENAS com a pergunta reescrita, sem explicações.

Pergunta Original:
{{.question}}

Pergunta Reescrita:`

const minimalTemplateEN = `Rewrite the following question to be self-contained and optimized for semantic search over the Brazilian Geography Olympiad regulations.

Remove ambiguous pronouns, expand implicit context and do not add new information.

Answer ONLY with the rewritten question, without explanations.

Original Question:
{{.question}}

Rewritten Question:`

func newTemplate(tmpl string, vars ...string) prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:       tmpl,
		InputVariables: vars,
		TemplateFormat: prompts.TemplateFormatGoTemplate,
	}
}

var templates = map[models.Language]map[models.RewriteVariant]prompts.PromptTemplate{
	models.Portuguese: {
		models.VariantContextual: newTemplate(contextualTemplatePT, "question", "history"),
		models.VariantMinimal:    newTemplate(minimalTemplatePT, "question"),
	},
	models.English: {
		models.VariantContextual: newTemplate(contextualTemplateEN, "question", "history"),
		models.VariantMinimal:    newTemplate(minimalTemplateEN, "question"),
	},
}

// echoedLabels are answer prefixes some models repeat from the prompt.
var echoedLabels = []string{
	"Pergunta Reescrita:",
	"Rewritten Question:",
}

func templateFor(lang models.Language, variant models.RewriteVariant) prompts.PromptTemplate {
	byVariant, ok := templates[lang]
	if !ok {
		byVariant = templates[models.PrimaryLanguage]
	}
	return byVariant[variant]
}
