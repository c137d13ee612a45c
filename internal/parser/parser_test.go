package parser

import (
	"strings"
	"testing"

	"github.com/hci/triagem/internal/models"
)

func TestParseWellFormedResponse(t *testing.T) {
	p := New(10)
	raw := "Classificação\namarelo\n\nJustificativa\nFebre alta e taquicardia sugerem infecção.\n\nCondutas\nSolicitar hemograma."

	result := p.Parse(raw)

	if result.Classification != models.ClassificationYellow {
		t.Errorf("Expected yellow, got %s", result.Classification)
	}
	if result.Justification != "Febre alta e taquicardia sugerem infecção." {
		t.Errorf("Unexpected justification: %q", result.Justification)
	}
	if result.Recommendations != "Solicitar hemograma." {
		t.Errorf("Unexpected recommendations: %q", result.Recommendations)
	}
}

func TestParseColonSeparatedMarkers(t *testing.T) {
	p := New(10)
	raw := "Classificação: VERMELHO\nJustificativa: Parada cardiorrespiratória em curso.\nCondutas: Atendimento imediato em sala de emergência."

	result := p.Parse(raw)

	if result.Classification != models.ClassificationRed {
		t.Errorf("Expected red, got %s", result.Classification)
	}
	if result.Justification != "Parada cardiorrespiratória em curso." {
		t.Errorf("Unexpected justification: %q", result.Justification)
	}
	if !strings.Contains(result.Recommendations, "sala de emergência") {
		t.Errorf("Unexpected recommendations: %q", result.Recommendations)
	}
}

func TestParsePriorityOrderWins(t *testing.T) {
	p := New(10)
	// Both colors present: the more urgent one must win regardless of position.
	raw := "Classificação\nverde\n\nO caso poderia ser laranja em caso de piora.\n\nCondutas\nObservação."

	result := p.Parse(raw)
	if result.Classification != models.ClassificationOrange {
		t.Errorf("Expected orange (higher priority), got %s", result.Classification)
	}
}

func TestParseMissingMarkersFallsBack(t *testing.T) {
	p := New(10)
	raw := "O paciente parece estável, sem sinais de alarme evidentes."

	result := p.Parse(raw)

	if result.Classification != models.ClassificationUnknown {
		t.Errorf("Expected unknown, got %s", result.Classification)
	}
	if result.Justification != FallbackJustification {
		t.Errorf("Expected fallback justification, got %q", result.Justification)
	}
	if result.Recommendations != FallbackRecommendations {
		t.Errorf("Expected fallback recommendations, got %q", result.Recommendations)
	}
}

func TestParseShortJustificationFallsBack(t *testing.T) {
	p := New(10)
	raw := "Classificação\nazul\n\nJustificativa\nOk.\n\nCondutas\nEncaminhar para atendimento ambulatorial."

	result := p.Parse(raw)

	if result.Classification != models.ClassificationBlue {
		t.Errorf("Expected blue, got %s", result.Classification)
	}
	if result.Justification != FallbackJustification {
		t.Errorf("Expected fallback for short justification, got %q", result.Justification)
	}
	if result.Recommendations != "Encaminhar para atendimento ambulatorial." {
		t.Errorf("Unexpected recommendations: %q", result.Recommendations)
	}
}

func TestParseStripsAssistantPrefix(t *testing.T) {
	p := New(10)
	raw := "assistant: Classificação\nlaranja\n\nJustificativa\nDor torácica intensa com sudorese fria.\n\nCondutas\nECG em até 10 minutos."

	result := p.Parse(raw)

	if result.Classification != models.ClassificationOrange {
		t.Errorf("Expected orange, got %s", result.Classification)
	}
	if strings.Contains(result.Justification, "assistant") {
		t.Errorf("Boilerplate leaked into justification: %q", result.Justification)
	}
}

func TestParseStripsDuplicateColorToken(t *testing.T) {
	p := New(10)
	raw := "Classificação\nverde\n\nJustificativa\nverde - Sintomas leves sem sinais de gravidade.\n\nCondutas\nOrientar retorno se piora."

	result := p.Parse(raw)

	if result.Classification != models.ClassificationGreen {
		t.Errorf("Expected green, got %s", result.Classification)
	}
	if strings.HasPrefix(strings.ToLower(result.Justification), "verde") {
		t.Errorf("Color token leaked into justification: %q", result.Justification)
	}
	if !strings.Contains(result.Justification, "Sintomas leves") {
		t.Errorf("Justification content lost: %q", result.Justification)
	}
}

func TestParseNeverPanicsOrErrors(t *testing.T) {
	p := New(10)
	inputs := []string{
		"",
		"   \n\t  ",
		"Condutas",
		"Classificação",
		"Justificativa Justificativa Justificativa",
		strings.Repeat("vermelho ", 1000),
		"CondutasClassificaçãoJustificativa",
	}
	for _, raw := range inputs {
		result := p.Parse(raw)
		if result.Justification == "" {
			t.Errorf("Empty justification for input %q", raw)
		}
		if result.Recommendations == "" {
			t.Errorf("Empty recommendations for input %q", raw)
		}
		if !result.Classification.Valid() {
			t.Errorf("Invalid classification %q for input %q", result.Classification, raw)
		}
	}
}

func TestParseCaseInsensitiveDetection(t *testing.T) {
	p := New(10)
	for raw, want := range map[string]models.Classification{
		"Classificação: AMARELO\nCondutas: Reavaliar em 60 minutos.": models.ClassificationYellow,
		"Classificação: Azul\nCondutas: Atendimento ambulatorial.":   models.ClassificationBlue,
		"classificação: vermelho\nCondutas: Emergência.":             models.ClassificationRed,
	} {
		result := p.Parse(raw)
		if result.Classification != want {
			t.Errorf("Parse(%q): expected %s, got %s", raw, want, result.Classification)
		}
	}
}
