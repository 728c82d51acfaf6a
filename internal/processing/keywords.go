package processing

import (
	"regexp"

	"github.com/wpp-platform/customer-service/internal/model"
)

var (
	positiveWords = []string{"obrigado", "valeu", "thanks", "ótimo", "bom", "excelente", "perfeito"}
	negativeWords = []string{"ruim", "péssimo", "terrível", "horrível", "problema", "erro"}

	escalationKeywords = []string{
		"falar com humano", "atendente", "supervisor", "reclamação",
		"problema sério", "não resolve", "cancelar", "devolução",
		"quero falar com alguém", "preciso de ajuda humana",
	}
	escalationNegativeWords = []string{
		"péssimo", "terrível", "horrível", "odiei", "detesto",
		"raiva", "irritado", "frustrado", "insatisfeito",
	}
)

type keywordSet[K any] struct {
	key   K
	words []string
}

var emotionKeywords = []keywordSet[string]{
	{"happy", []string{"feliz", "alegre", "contente", "satisfeito"}},
	{"angry", []string{"raiva", "irritado", "furioso", "bravo"}},
	{"sad", []string{"triste", "deprimido", "chateado", "melancólico"}},
	{"excited", []string{"animado", "empolgado", "entusiasmado"}},
	{"frustrated", []string{"frustrado", "irritado", "incomodado"}},
}

// intentKeywords is evaluated in order; the first intent with a match wins.
var intentKeywords = []keywordSet[model.Intent]{
	{model.IntentGreeting, []string{"oi", "olá", "bom dia", "boa tarde", "boa noite", "hello", "hi"}},
	{model.IntentQuestion, []string{"como", "quando", "onde", "por que", "qual", "quanto", "?"}},
	{model.IntentComplaint, []string{"reclamação", "problema", "erro", "falha", "defeito"}},
	{model.IntentCompliment, []string{"parabéns", "excelente", "ótimo", "perfeito", "muito bom"}},
	{model.IntentGoodbye, []string{"tchau", "até logo", "bye", "até mais", "falou"}},
	{model.IntentHelp, []string{"ajuda", "help", "suporte", "dúvida", "não sei"}},
}

var cannedResponses = map[model.Intent]string{
	model.IntentGreeting:   "Olá! 👋 Como posso ajudá-lo hoje?",
	model.IntentQuestion:   "Ótima pergunta! Deixe-me ajudá-lo com isso.",
	model.IntentComplaint:  "Entendo sua preocupação. Vou fazer o possível para resolver isso.",
	model.IntentCompliment: "Muito obrigado pelo feedback positivo! 😊",
	model.IntentGoodbye:    "Até logo! Foi um prazer conversar com você. 👋",
	model.IntentHelp:       "Claro! Estou aqui para ajudar. Qual é sua dúvida?",
	model.IntentOther:      "Entendi. Como posso ajudá-lo melhor?",
}

// ApologyResponse is sent when reply generation fails.
const ApologyResponse = "Desculpe, ocorreu um erro ao processar sua mensagem. Tente novamente."

var entityPatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)},
	{"phone", regexp.MustCompile(`\b\d{2,3}\s?\d{4,5}\s?\d{4}\b`)},
	{"money", regexp.MustCompile(`(?i)r\$\s?\d+[,.]?\d*`)},
}
