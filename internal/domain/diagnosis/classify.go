package diagnosis

import (
	"strings"

	"github.com/conectaribas/conectaribas/internal/domain/severity"
)

// ManualStep is one question of the fixed manual questionnaire.
type ManualStep struct {
	Key     string   `json:"key"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// ManualQuestionnaire returns the four fixed steps of the manual path:
// main symptom, pain intensity, duration and impact.
func ManualQuestionnaire() []ManualStep {
	return []ManualStep{
		{Key: "symptom", Prompt: "Qual é o seu sintoma principal?", Options: []string{
			"Dor de cabeça", "Febre", "Dor abdominal", "Dificuldade para respirar", "Náusea ou vômito", "Tontura",
		}},
		{Key: "pain", Prompt: "Como você avalia a intensidade da dor?", Options: []string{
			"Sem dor", "Dor leve", "Dor moderada", "Dor intensa", "Dor insuportável",
		}},
		{Key: "duration", Prompt: "Há quanto tempo você está sentindo isso?", Options: []string{
			"Menos de 1 hora", "1 a 6 horas", "6 a 24 horas", "1 a 3 dias", "Mais de 3 dias",
		}},
		{Key: "impact", Prompt: "Como isso afeta suas atividades diárias?", Options: []string{
			"Não interfere nas atividades", "Interfere um pouco", "Interfere significativamente",
			"Impossibilita atividades", "Sintomas muito graves",
		}},
	}
}

// ManualResult is the classification of a manual questionnaire.
type ManualResult struct {
	Severity        severity.Severity `json:"severity"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Recommendations []string          `json:"recommendations"`
}

// RecommendationText joins the recommendation lines as they are stored.
func (r ManualResult) RecommendationText() string {
	return strings.Join(r.Recommendations, "\n")
}

var manualResults = map[severity.Severity]ManualResult{
	severity.Emergency: {
		Severity:    severity.Emergency,
		Title:       "Alerta de Emergência!",
		Description: "Seus sintomas indicam uma situação que pode ser grave e requer atenção médica imediata.",
		Recommendations: []string{
			"Procure ajuda médica imediatamente",
			"Não dirija sozinho",
			"Mantenha-se calmo e em repouso",
			"Ligue para emergência se necessário",
		},
	},
	severity.Guidance: {
		Severity:    severity.Guidance,
		Title:       "Orientações Iniciais",
		Description: "Seus sintomas requerem atenção médica em breve para uma avaliação adequada.",
		Recommendations: []string{
			"Consulte um médico nas próximas 24 horas",
			"Monitore seus sintomas constantemente",
			"Evite atividades que piorem os sintomas",
			"Tome medicamentos apenas com orientação médica",
		},
	},
	severity.Mild: {
		Severity:    severity.Mild,
		Title:       "Sintomas Leves (Observe)",
		Description: "Seus sintomas são leves e podem ser monitorados em casa.",
		Recommendations: []string{
			"Monitore seus sintomas por 24-48 horas",
			"Descanse adequadamente",
			"Mantenha-se hidratado",
			"Procure ajuda se os sintomas piorarem",
		},
	},
}

// Classify applies the manual rule to a set of answer texts. Order does not
// matter and the first matching tier wins:
//
//	Emergency: breathing difficulty, or intense or unbearable pain
//	Guidance:  activities impossible, very severe symptoms, or more than 3 days
//	Mild:      anything else
//
// The rule looks only at these markers and ignores the tree's answer
// weights.
func Classify(answers []string) ManualResult {
	has := make(map[string]bool, len(answers))
	for _, a := range answers {
		has[strings.TrimSpace(a)] = true
	}

	var sev severity.Severity
	switch {
	case has["Dificuldade para respirar"] || has["Dor intensa"] || has["Dor insuportável"]:
		sev = severity.Emergency
	case has["Impossibilita atividades"] || has["Sintomas muito graves"] || has["Mais de 3 dias"]:
		sev = severity.Guidance
	default:
		sev = severity.Mild
	}

	res := manualResults[sev]
	res.Recommendations = append([]string(nil), res.Recommendations...)
	return res
}
