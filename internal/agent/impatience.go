package agent

import "time"

// Impatience replies keyed by elapsed-time bucket, per kind.
var impatienceLookup = []string{
	"Disculpa, estoy procesando tu consulta. Te respondo en unos segundos más.",
	"Te pido paciencia, estoy buscando la información más precisa para ti.",
	"Entiendo tu impaciencia, la consulta está tomando más tiempo del esperado. Te aseguro que tendrás la respuesta muy pronto.",
}

var impatienceScheduling = []string{
	"Disculpa, estoy procesando tu cita. Te respondo en unos segundos.",
	"Te pido paciencia, estoy confirmando la disponibilidad del gerente.",
	"Entiendo tu impaciencia, la cita está casi lista. Te confirmo en breve.",
}

// ImpatienceReply returns the canned response for a user expressing
// impatience: selected by (kind, elapsed bucket) while an operation is
// active, or a generic offer of help otherwise. Pure read of shared state;
// no mutation.
func (s *OperationState) ImpatienceReply(now time.Time) string {
	s.mu.Lock()
	active := s.active
	kind := s.kind
	started := s.startedAt
	s.mu.Unlock()

	if !active {
		return IdleHelpText
	}

	replies := impatienceLookup
	if kind == KindScheduling {
		replies = impatienceScheduling
	}
	switch elapsed := now.Sub(started); {
	case elapsed < 5*time.Second:
		return replies[0]
	case elapsed < 10*time.Second:
		return replies[1]
	default:
		return replies[2]
	}
}
