package answer

import (
	"github.com/tmc/langchaingo/prompts"
	"github.com/xhad/regqa/internal/models"
)

const systemPromptPT = `Você é um assistente especializado no Regulamento Oficial da Olimpíada Brasileira de Geografia (OBG).

REGRAS OBRIGATÓRIAS:
1. Utilize APENAS as informações fornecidas no CONTEXTO.
2. Sintetize a informação com suas próprias palavras, sem copiar o contexto literalmente.
3. Seja conciso: no máximo 2 a 3 frases curtas e diretas.
4. Responda apenas o que foi perguntado.
5. NUNCA invente informações que não estão no contexto. Se a resposta não estiver no contexto, diga isso claramente.
6. Responda em português.
7. Se a pergunta for "quem pode participar", descreva APENAS o perfil dos participantes elegíveis, sem falar de inscrição, equipes ou professores.
8. Se não houver resposta no contexto, sugira o email de contato: obgeografia@unifal-mg.edu.br

FORMATO DA RESPOSTA:
- Resposta concisa e direta.
- NÃO adicione citações nem fontes; elas são adicionadas automaticamente.`

const systemPromptEN = `You are an assistant specialized in the Official Regulations of the Brazilian Geography Olympiad (OBG).

MANDATORY RULES:
1. Use ONLY the information provided in the CONTEXT.
2. Synthesize the information in your own words, without copying the context verbatim.
3. Be concise: at most 2 to 3 short, direct sentences.
4. Answer only what was asked.
5. NEVER make up information that is not in the context. If the answer is not in the context, say so clearly.
6. Answer in English.
7. If the question is "who can participate", describe ONLY the profile of eligible participants, without mentioning registration, teams or teachers.
8. If the context has no answer, suggest the contact email: obgeografia@unifal-mg.edu.br

ANSWER FORMAT:
- A concise, direct answer.
- Do NOT add citations or sources; they are added automatically.`

const humanTemplatePT = `Contexto disponível:
{{.context}}

Pergunta: {{.question}}

Responda em no máximo 2 a 3 frases, usando apenas o contexto acima.`

const humanTemplateEN = `Available context:
{{.context}}

Question: {{.question}}

Answer in at most 2 to 3 sentences, using only the context above.`

type languagePack struct {
	system      string
	human       prompts.PromptTemplate
	pageWord    string
	furtherRead string
	fallback    string
}

var packs = map[models.Language]languagePack{
	models.Portuguese: {
		system:      systemPromptPT,
		human:       newTemplate(humanTemplatePT),
		pageWord:    "página",
		furtherRead: "Para saber mais, consulte:",
		fallback: `Desculpe, não encontrei informações suficientes no regulamento oficial da OBG para responder sua pergunta.

Você pode:
- Reformular sua pergunta de outra forma
- Entrar em contato com a organização pelo email: obgeografia@unifal-mg.edu.br
- Consultar diretamente o regulamento oficial no site da OBG`,
	},
	models.English: {
		system:      systemPromptEN,
		human:       newTemplate(humanTemplateEN),
		pageWord:    "page",
		furtherRead: "For further reading, see:",
		fallback: `Sorry, I could not find enough information in the official OBG regulations to answer your question.

You can:
- Rephrase your question
- Contact the organization by email: obgeografia@unifal-mg.edu.br
- Check the official regulations on the OBG website`,
	},
}

func newTemplate(tmpl string) prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:       tmpl,
		InputVariables: []string{"context", "question"},
		TemplateFormat: prompts.TemplateFormatGoTemplate,
	}
}

func packFor(lang models.Language) languagePack {
	if p, ok := packs[lang]; ok {
		return p
	}
	return packs[models.PrimaryLanguage]
}

// FallbackText is the canned answer used when there is nothing to ground an answer on.
func FallbackText(lang models.Language) string {
	return packFor(lang).fallback
}
