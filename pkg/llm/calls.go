package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/vitalis-care/plantao/pkg/clinical"
	"github.com/vitalis-care/plantao/pkg/models"
)

// Intent is the classified routing intent.
type Intent struct {
	Subgraph   string
	Confidence float64
}

// IntentUndefined routes to the help subgraph.
const IntentUndefined = "indefinido"

// Confirmation answers.
const (
	ConfirmYes     = "yes"
	ConfirmNo      = "no"
	ConfirmCancel  = "cancel"
	ConfirmUnclear = "unclear"
)

// OperationalNote is the operational content detection result.
type OperationalNote struct {
	IsOperational bool
	Note          string
	Urgency       string
}

// Urgency levels for operational notes.
const (
	UrgencyLow    = "low"
	UrgencyNormal = "normal"
	UrgencyHigh   = "high"
)

// IntentClassify maps a caregiver message to one of the five subgraphs, or
// IntentUndefined when the model cannot decide.
func (g *Gateway) IntentClassify(ctx context.Context, text, compactState string) (Intent, error) {
	user := fmt.Sprintf(`Classifique a intenção do cuidador de saúde domiciliar.

TEXTO DO USUÁRIO: %q

CONTEXTO DA SESSÃO:
%s

INTENÇÕES POSSÍVEIS:
- escala: confirmar presença, cancelar plantão, perguntas sobre horário ou escala
- clinico: sinais vitais (PA, FC, FR, saturação, temperatura), notas clínicas, condição respiratória (ar ambiente, oxigênio, ventilação)
- operacional: notas administrativas e observações sem dados clínicos
- finalizar: encerrar o plantão, relatório final
- auxiliar: dúvidas, saudações, pedidos de ajuda
- indefinido: quando nenhuma das anteriores se aplica com clareza

Responda APENAS com JSON válido:
{"intencao": "escala|clinico|operacional|finalizar|auxiliar|indefinido", "confianca": 0.0}`, text, compactState)

	var wire struct {
		Intencao  string  `json:"intencao"`
		Confianca float64 `json:"confianca"`
	}
	err := g.completeJSON(ctx, g.intentModel, "", user, 60, &wire, func() error {
		if wire.Intencao != IntentUndefined && !models.KnownSubgraph(wire.Intencao) {
			return fmt.Errorf("unknown intent %q", wire.Intencao)
		}
		return nil
	})
	if err != nil {
		return Intent{}, err
	}
	return Intent{Subgraph: wire.Intencao, Confidence: wire.Confianca}, nil
}

// ConfirmationClassify reads a yes/no/cancel answer out of free text.
func (g *Gateway) ConfirmationClassify(ctx context.Context, text string) (string, error) {
	user := fmt.Sprintf(`Você é um classificador de confirmações em português brasileiro.

Classifique o texto do usuário:
- "sim": confirmação positiva (sim, confirmo, ok, pode ser, tá bom)
- "nao": negação (não, nao, não posso, melhor não)
- "cancelar": pedido explícito de cancelamento (cancela, desisto, deixa pra lá)
- "ambiguo": não é uma confirmação nem negação clara

Texto do usuário: %q

Responda APENAS com JSON válido:
{"classificacao": "sim|nao|cancelar|ambiguo"}`, text)

	var wire struct {
		Classificacao string `json:"classificacao"`
	}
	err := g.completeJSON(ctx, g.intentModel, "", user, 30, &wire, func() error {
		switch wire.Classificacao {
		case "sim", "nao", "cancelar", "ambiguo":
			return nil
		}
		return fmt.Errorf("unknown classification %q", wire.Classificacao)
	})
	if err != nil {
		return "", err
	}
	switch wire.Classificacao {
	case "sim":
		return ConfirmYes, nil
	case "nao":
		return ConfirmNo, nil
	case "cancelar":
		return ConfirmCancel, nil
	}
	return ConfirmUnclear, nil
}

// OperationalNoteDetect decides whether the message is operational content
// (supplies, infrastructure, visitors) rather than clinical data.
func (g *Gateway) OperationalNoteDetect(ctx context.Context, text string) (OperationalNote, error) {
	system := `Analise se o texto contém uma NOTA OPERACIONAL que deve ser registrada imediatamente.

NOTAS OPERACIONAIS são informações sobre:
- falta de materiais ou medicamentos (acabou a fralda, faltou soro)
- problemas estruturais (ar condicionado quebrou, falta luz, vazamento)
- intercorrências operacionais (familiar chegou, médico visitou)
- problemas com equipamentos (bomba infusora com defeito)
- solicitações de materiais ou serviços

NÃO são operacionais: sinais vitais, sintomas, estado clínico do paciente.

Urgência:
- "high": falta de material essencial, equipamento crítico parado, risco imediato
- "normal": demais intercorrências operacionais
- "low": observações sem necessidade de ação

Responda APENAS com JSON válido:
{"is_operational": true|false, "operational_note": "string|null", "urgency": "low|normal|high"}`

	var wire struct {
		IsOperational   bool    `json:"is_operational"`
		OperationalNote *string `json:"operational_note"`
		Urgency         string  `json:"urgency"`
	}
	err := g.completeJSON(ctx, g.intentModel, system, fmt.Sprintf("TEXTO: %q", text), 200, &wire, func() error {
		switch wire.Urgency {
		case "", UrgencyLow, UrgencyNormal, UrgencyHigh:
			return nil
		}
		return fmt.Errorf("unknown urgency %q", wire.Urgency)
	})
	if err != nil {
		return OperationalNote{}, err
	}

	result := OperationalNote{IsOperational: wire.IsOperational, Urgency: wire.Urgency}
	if result.Urgency == "" {
		result.Urgency = UrgencyNormal
	}
	if wire.OperationalNote != nil {
		result.Note = *wire.OperationalNote
	}
	if result.Note == "" {
		result.Note = text
	}
	return result, nil
}

// ClinicalExtract reads vitals, respiratory condition and clinical notes
// out of free text. The result is already range-validated; out-of-range
// values come back nil with a warning code.
func (g *Gateway) ClinicalExtract(ctx context.Context, text string) (models.ClinicalExtraction, error) {
	user := fmt.Sprintf(`Extraia dados clínicos da mensagem de um cuidador de saúde domiciliar.

TEXTO: %q

REGRAS:
- PA: normalize para "PASxPAD" (ex: "120x80"). Se o texto trouxer abreviação ambígua como "12/8", devolva o texto original sem converter.
- FC em bpm, FR em irpm, Sat em %%, Temp em °C (use ponto decimal).
- supplementaryOxygen: descreva a condição respiratória mencionada (ar ambiente, oxigênio suplementar, ventilação mecânica) ou null.
- nota: texto clínico livre que não seja sinal vital, ou null.
- NUNCA invente valores não mencionados.

Responda APENAS com JSON válido:
{"vitals": {"PA": "string|null", "FC": 0, "FR": 0, "Sat": 0, "Temp": 0.0}, "supplementaryOxygen": "string|null", "nota": "string|null", "warnings": []}`, text)

	var wire struct {
		Vitals struct {
			PA   *string  `json:"PA"`
			FC   *int     `json:"FC"`
			FR   *int     `json:"FR"`
			Sat  *int     `json:"Sat"`
			Temp *float64 `json:"Temp"`
		} `json:"vitals"`
		SupplementaryOxygen *string  `json:"supplementaryOxygen"`
		Nota                *string  `json:"nota"`
		Warnings            []string `json:"warnings"`
	}
	if err := g.completeJSON(ctx, g.extractorModel, "", user, 300, &wire, nil); err != nil {
		return models.ClinicalExtraction{}, err
	}

	extraction := models.ClinicalExtraction{
		Vitals: models.Vitals{
			PA:    wire.Vitals.PA,
			HR:    wire.Vitals.FC,
			RR:    wire.Vitals.FR,
			SatO2: wire.Vitals.Sat,
			Temp:  wire.Vitals.Temp,
		},
		ClinicalNote: wire.Nota,
		Warnings:     wire.Warnings,
	}
	if wire.SupplementaryOxygen != nil {
		extraction.RespiratoryMode = clinical.MapRespiratory(*wire.SupplementaryOxygen)
	}
	return clinical.Sanitize(extraction), nil
}

// FinalizationTopicExtract fills finalization topics mentioned in the
// message. Topics already collected are never returned again, and the
// model is instructed not to invent content.
func (g *Gateway) FinalizationTopicExtract(ctx context.Context, text string, collected *models.FinalizationTopics, existingNotes []string) (map[string]string, error) {
	var done, missing []string
	for _, topic := range models.TopicOrder {
		if collected.Get(topic) != nil {
			done = append(done, topic)
		} else {
			missing = append(missing, topic)
		}
	}

	var notesContext string
	if len(existingNotes) > 0 {
		notesContext = "NOTAS JÁ REGISTRADAS NO PLANTÃO:\n- " + strings.Join(existingNotes, "\n- ")
	}

	user := fmt.Sprintf(`Extraia tópicos do relatório de finalização de plantão a partir da mensagem do cuidador.

TEXTO: %q

TÓPICOS AINDA PENDENTES: %s
TÓPICOS JÁ COLETADOS (ignore): %s
%s

REGRAS:
- Preencha apenas tópicos explicitamente mencionados no texto.
- NUNCA invente informações.
- Um mesmo texto pode preencher vários tópicos.

Responda APENAS com JSON válido usando null para tópicos não mencionados:
{"alimentacao": null, "evacuacoes": null, "sono": null, "humor": null, "medicacoes": null, "atividades": null, "adicional_clinico": null, "adicional_administrativo": null}`,
		text, strings.Join(missing, ", "), strings.Join(done, ", "), notesContext)

	wire := map[string]*string{}
	if err := g.completeJSON(ctx, g.extractorModel, "", user, 400, &wire, nil); err != nil {
		return nil, err
	}

	filled := make(map[string]string)
	for _, topic := range missing {
		if value, ok := wire[topic]; ok && value != nil && strings.TrimSpace(*value) != "" {
			filled[topic] = strings.TrimSpace(*value)
		}
	}
	return filled, nil
}

// GenerateReply produces the user-visible reply for the fiscal
// consolidator. The finalization guardrail is instructed here and enforced
// again by the caller.
func (g *Gateway) GenerateReply(ctx context.Context, compactState, userText, outcomeCode string, finishReminderSent bool) (string, error) {
	system := `Você é o assistente WhatsApp para cuidadores em plantões domiciliares.

REGRAS:
1. Respostas CURTAS, no máximo 3 linhas, em português brasileiro.
2. Seja contextual: use o estado da sessão e o código de resultado.
3. Se houver confirmação pendente, mencione exatamente o que está aguardando.
4. Se faltarem dados clínicos, liste apenas o que falta.
5. NUNCA invente dados que não estão no estado.
6. Linguagem natural e cordial, sem jargão técnico.`
	if !finishReminderSent {
		system += "\n7. PROIBIDO mencionar finalização ou encerramento do plantão."
	}

	user := fmt.Sprintf(`ESTADO ATUAL DA SESSÃO:
%s

CÓDIGO DE RESULTADO DO TURNO: %s

ÚLTIMA MENSAGEM DO USUÁRIO: %q

Gere a resposta para o cuidador.`, compactState, outcomeCode, userText)

	reply, err := g.complete(ctx, g.intentModel, system, user, 180, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
