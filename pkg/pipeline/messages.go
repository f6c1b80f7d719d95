package pipeline

import "github.com/xhad/regqa/internal/models"

var notReadyMessages = map[models.Language]string{
	models.Portuguese: "O sistema de busca ainda não está pronto. Por favor, tente novamente mais tarde.",
	models.English:    "The search system is not ready yet. Please try again later.",
}

var noMatchMessages = map[models.Language]string{
	models.Portuguese: "Não encontrei nada no regulamento relacionado à sua pergunta. Pode reformular?",
	models.English:    "I could not find anything in the regulations related to your question. Could you rephrase it?",
}

func message(messages map[models.Language]string, lang models.Language) string {
	if m, ok := messages[lang]; ok {
		return m
	}
	return messages[models.PrimaryLanguage]
}

// NotReadyMessage is returned while the index is still loading.
func NotReadyMessage(lang models.Language) string {
	return message(notReadyMessages, lang)
}

// NoMatchMessage is returned when retrieval finds nothing.
func NoMatchMessage(lang models.Language) string {
	return message(noMatchMessages, lang)
}
