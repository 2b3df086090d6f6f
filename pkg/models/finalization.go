package models

// Finalization topic keys, in the order they are requested from the
// caregiver.
const (
	TopicAlimentacao             = "alimentacao"
	TopicEvacuacoes              = "evacuacoes"
	TopicSono                    = "sono"
	TopicHumor                   = "humor"
	TopicMedicacoes              = "medicacoes"
	TopicAtividades              = "atividades"
	TopicAdicionalClinico        = "adicional_clinico"
	TopicAdicionalAdministrativo = "adicional_administrativo"
)

// TopicOrder is the canonical collection order of the eight topics.
var TopicOrder = []string{
	TopicAlimentacao,
	TopicEvacuacoes,
	TopicSono,
	TopicHumor,
	TopicMedicacoes,
	TopicAtividades,
	TopicAdicionalClinico,
	TopicAdicionalAdministrativo,
}

// TopicLabels maps topic keys to the captions shown to the caregiver.
var TopicLabels = map[string]string{
	TopicAlimentacao:             "Alimentação e Hidratação",
	TopicEvacuacoes:              "Evacuações",
	TopicSono:                    "Sono",
	TopicHumor:                   "Humor",
	TopicMedicacoes:              "Medicações",
	TopicAtividades:              "Atividades",
	TopicAdicionalClinico:        "Informações Clínicas Adicionais",
	TopicAdicionalAdministrativo: "Informações Administrativas",
}

// NoInformation is the placeholder submitted for topics the caregiver had
// nothing to report on.
const NoInformation = "Sem informações"

// FinalizationTopics holds the shift-closing report, one free-text entry per
// topic. A nil field is still unanswered.
type FinalizationTopics struct {
	Alimentacao             *string `json:"alimentacao,omitempty"`
	Evacuacoes              *string `json:"evacuacoes,omitempty"`
	Sono                    *string `json:"sono,omitempty"`
	Humor                   *string `json:"humor,omitempty"`
	Medicacoes              *string `json:"medicacoes,omitempty"`
	Atividades              *string `json:"atividades,omitempty"`
	AdicionalClinico        *string `json:"adicional_clinico,omitempty"`
	AdicionalAdministrativo *string `json:"adicional_administrativo,omitempty"`
}

func (f *FinalizationTopics) field(topic string) **string {
	switch topic {
	case TopicAlimentacao:
		return &f.Alimentacao
	case TopicEvacuacoes:
		return &f.Evacuacoes
	case TopicSono:
		return &f.Sono
	case TopicHumor:
		return &f.Humor
	case TopicMedicacoes:
		return &f.Medicacoes
	case TopicAtividades:
		return &f.Atividades
	case TopicAdicionalClinico:
		return &f.AdicionalClinico
	case TopicAdicionalAdministrativo:
		return &f.AdicionalAdministrativo
	}
	return nil
}

// Get returns the collected value for a topic, or nil.
func (f *FinalizationTopics) Get(topic string) *string {
	p := f.field(topic)
	if p == nil {
		return nil
	}
	return *p
}

// Set records a topic value. It reports whether the topic was newly filled:
// already-collected topics are never overwritten.
func (f *FinalizationTopics) Set(topic, value string) bool {
	p := f.field(topic)
	if p == nil || *p != nil || value == "" {
		return false
	}
	v := value
	*p = &v
	return true
}

// Missing returns the topics still unanswered, in canonical order.
func (f *FinalizationTopics) Missing() []string {
	var missing []string
	for _, topic := range TopicOrder {
		if *f.field(topic) == nil {
			missing = append(missing, topic)
		}
	}
	return missing
}

// Complete reports whether all eight topics are filled.
func (f *FinalizationTopics) Complete() bool {
	return len(f.Missing()) == 0
}

// ValueOrDefault returns the collected value, or the "Sem informações"
// placeholder when the topic stayed empty.
func (f *FinalizationTopics) ValueOrDefault(topic string) string {
	if v := f.Get(topic); v != nil && *v != "" {
		return *v
	}
	return NoInformation
}
