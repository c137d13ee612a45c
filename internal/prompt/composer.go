// Package prompt builds the grounded classification prompt sent to the
// generation model.
package prompt

import (
	"strings"

	"github.com/hci/triagem/internal/casestore"
)

// SystemInstructions is the fixed Manchester Protocol rubric. It pins the
// response grammar the parser depends on: three labeled sections, a single
// color word under Classificação, no color words in the Justificativa.
const SystemInstructions = `Você é um assistente especializado em triagem clínica baseado no Protocolo de Manchester.

ESTRUTURA OBRIGATÓRIA DA RESPOSTA:
Classificação
[COR_ÚNICA]

Justificativa
[Análise clínica detalhada sem mencionar cores]

Condutas
[Procedimentos e encaminhamentos específicos]

REGRAS PARA CLASSIFICAÇÃO:
- VERMELHO: Risco de vida imediato (parada cardiorrespiratória, choque, inconsciência)
- LARANJA: Muito urgente (dor torácica intensa, dispneia grave, alteração neurológica aguda)
- AMARELO: Urgente (febre alta, dor moderada a intensa, vômitos persistentes)
- VERDE: Pouco urgente (sintomas leves, condições estáveis)
- AZUL: Não urgente (condições crônicas estáveis, consultas de rotina)

INSTRUÇÕES ESPECÍFICAS:
1. Na seção "Classificação": Use APENAS uma palavra (vermelho, laranja, amarelo, verde ou azul)
2. Na seção "Justificativa":
   - NÃO mencione nenhuma cor
   - Analise sintomas, sinais vitais e fatores de risco
   - Explique o raciocínio clínico baseado nos achados
3. Na seção "Condutas":
   - Liste procedimentos imediatos
   - Indique exames necessários
   - Defina tempo máximo para reavaliação

EXEMPLO DE RESPOSTA CORRETA:
Classificação
amarelo

Justificativa
Paciente apresenta sintomas compatíveis com processo infeccioso agudo. A febre elevada associada à taquicardia sugere necessidade de avaliação médica em prazo reduzido para investigação etiológica e início de tratamento apropriado.

Condutas
- Verificar sinais vitais completos
- Solicitar hemograma completo e PCR
- Administrar antitérmico se necessário
- Reavaliação médica em até 60 minutos`

// Composer deterministically assembles prompts from new symptoms and
// retrieved neighbor cases. It has no side effects.
type Composer struct {
	charBudget int
}

// NewComposer creates a composer with the given prompt character budget.
// The budget bounds the whole prompt so it stays under the generation
// model's context limit.
func NewComposer(charBudget int) *Composer {
	if charBudget <= 0 {
		charBudget = 8000
	}
	return &Composer{charBudget: charBudget}
}

// Compose builds the prompt for symptoms grounded on neighbors, which must
// be ordered by descending similarity. When neighbor text would overflow the
// budget, the lowest-similarity neighbors are dropped first; the rubric and
// the new symptoms are never truncated. Zero neighbors omits the
// similar-cases section entirely.
func (c *Composer) Compose(symptoms string, neighbors []casestore.QueryResult) string {
	var b strings.Builder
	b.WriteString(SystemInstructions)
	b.WriteString("\n\nSintomas do novo caso: ")
	b.WriteString(symptoms)

	if len(neighbors) == 0 {
		return b.String()
	}

	const header = "\n\nCasos Similares:\n"
	used := b.Len() + len(header)
	var caseTexts []string
	for _, n := range neighbors {
		text := neighborText(n)
		if used+len(text)+1 > c.charBudget {
			break
		}
		caseTexts = append(caseTexts, text)
		used += len(text) + 1
	}
	if len(caseTexts) == 0 {
		return b.String()
	}

	b.WriteString(header)
	b.WriteString(strings.Join(caseTexts, "\n"))
	return b.String()
}

func neighborText(n casestore.QueryResult) string {
	if n.Case.OutcomeText == "" {
		return "- " + n.Case.SymptomText
	}
	return "- " + n.Case.SymptomText + " => " + n.Case.OutcomeText
}
