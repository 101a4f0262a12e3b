package agent

import (
	"math/rand"
	"sync"
)

// Utterance pools, keyed by (kind, stage). Pure data; selection goes through
// Phrasebook so tests can seed the random source.

var feedbackPools = map[Kind]map[Stage][]string{
	KindLookup: {
		StageInitial: {
			"Consultando la información, un momento por favor...",
			"Buscando los detalles para ti, espera un segundo...",
			"Procesando tu consulta, dame un momento...",
		},
		StageProcessing: {
			"Un momento más, estoy procesando tu consulta...",
			"Ya casi tengo la respuesta, espera un poco por favor...",
			"Seguimos buscando la información, gracias por esperar...",
		},
		StagePatience: {
			"Aún estoy buscando la información, gracias por tu paciencia...",
			"La respuesta está en camino, te agradezco la espera...",
			"Seguimos procesando, un poco más y te respondo...",
		},
	},
	KindScheduling: {
		StageInitial: {
			"Procesando tu solicitud de cita, un momento por favor...",
			"Agendando tu cita con el gerente comercial, espera un segundo...",
			"Verificando la disponibilidad, dame un momento...",
		},
		StageProcessing: {
			"Un momento más, estoy confirmando la cita...",
			"Ya casi terminamos de agendar, gracias por esperar...",
			"Procesando los detalles de tu cita, un segundo más...",
		},
		StagePatience: {
			"Aún estoy coordinando la cita, gracias por tu paciencia...",
			"La cita está en proceso, te agradezco la espera...",
			"Seguimos trabajando en tu solicitud, un poco más y listo...",
		},
	},
}

var configMissingText = map[Kind]string{
	KindLookup:     "Lo siento, hay un problema de configuración que me impide buscar la información.",
	KindScheduling: "Lo siento, hay un problema de configuración que me impide agendar la cita.",
}

var timeoutText = map[Kind]string{
	KindLookup:     "La consulta está tardando más de lo esperado. ¿Podrías repetir tu pregunta o ser más específico?",
	KindScheduling: "El proceso de agendamiento está tomando más tiempo del esperado. ¿Podrías intentar de nuevo?",
}

var backendErrorText = map[Kind]string{
	KindLookup:     "No pude conectarme con el sistema de información en este momento. ¿Puedo ayudarte con algo más?",
	KindScheduling: "No pude conectar con el sistema de agendamiento. ¿Puedo ayudarte con algo más?",
}

var unexpectedText = map[Kind]string{
	KindLookup:     "Ocurrió un error al procesar tu solicitud. ¿Podrías intentar reformular tu pregunta?",
	KindScheduling: "Ocurrió un error al agendar tu cita. ¿Podrías intentar de nuevo o especificar otra fecha?",
}

var supersededText = map[Kind]string{
	KindLookup:     "He recibido tu nueva pregunta, déjame procesarla.",
	KindScheduling: "He recibido una nueva solicitud, déjame procesarla.",
}

// CheckInText is the single idle check-in spoken by the silence monitor.
const CheckInText = "¿Hay algo más en lo que pueda ayudarte?"

// IdleHelpText is returned by the impatience responder when nothing is in flight.
const IdleHelpText = "¿En qué puedo ayudarte? Estoy aquí para resolver tus dudas sobre Multiservicioscall."

// Phrasebook selects feedback utterances at random from the per-kind pools.
type Phrasebook struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPhrasebook builds a Phrasebook with the given seed. Tests pass a fixed
// seed for deterministic selection.
func NewPhrasebook(seed int64) *Phrasebook {
	return &Phrasebook{rnd: rand.New(rand.NewSource(seed))}
}

// Feedback returns one utterance for the given kind and stage, or "" when no
// pool exists for the pair.
func (p *Phrasebook) Feedback(kind Kind, stage Stage) string {
	pool := feedbackPools[kind][stage]
	if len(pool) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return pool[p.rnd.Intn(len(pool))]
}
