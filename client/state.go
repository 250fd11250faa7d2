package client

// State é o estado de um pedido lógico dentro do cliente.
type State uint8

const (
	StateFresh State = iota
	StateDispatched
	StateSucceeded
	StateFailedAuth
	StateFailedOther
	StateRefreshInFlight
	StateRetryDispatched
	StateRefreshFailed
	StateFailedFinal
)

var stateNames = [...]string{
	StateFresh:           "fresh",
	StateDispatched:      "dispatched",
	StateSucceeded:       "succeeded",
	StateFailedAuth:      "failed_auth",
	StateFailedOther:     "failed_other",
	StateRefreshInFlight: "refresh_in_flight",
	StateRetryDispatched: "retry_dispatched",
	StateRefreshFailed:   "refresh_failed",
	StateFailedFinal:     "failed_final",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal indica se o pedido já terminou.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailedOther || s == StateFailedFinal
}

// Fresh -> FailedOther cobre falhas antes do envio (ctx cancelado no throttle,
// sem vaga, refresh proativo falhou).
var transitions = map[State][]State{
	StateFresh:           {StateDispatched, StateFailedOther},
	StateDispatched:      {StateSucceeded, StateFailedAuth, StateFailedOther},
	StateFailedAuth:      {StateRefreshInFlight},
	StateRefreshInFlight: {StateRetryDispatched, StateRefreshFailed},
	StateRetryDispatched: {StateSucceeded, StateFailedFinal},
	StateRefreshFailed:   {StateFailedFinal},
}

// CanTransition informa se s -> to é uma transição legal.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// StateHook observa cada transição de estado (útil para tracing e testes).
type StateHook func(requestID string, from, to State)

// attempt é um envio concreto de um Request.
type attempt interface {
	request() *Request
	number() int
}

// firstAttempt é o primeiro envio. Só ele sabe gerar um retry.
type firstAttempt struct {
	req *Request
}

func (a firstAttempt) request() *Request { return a.req }
func (a firstAttempt) number() int       { return 1 }

func (a firstAttempt) retryWith(token string) retryAttempt {
	return retryAttempt{req: a.req, token: token}
}

// retryAttempt é o reenvio após refresh. Não tem retryWith: um segundo
// reenvio do mesmo pedido não tem como ser construído.
type retryAttempt struct {
	req   *Request
	token string
}

func (a retryAttempt) request() *Request { return a.req }
func (a retryAttempt) number() int       { return 2 }

// tracker guarda o estado atual de um pedido e avisa o hook.
type tracker struct {
	requestID string
	state     State
	hook      StateHook
	onIllegal func(from, to State)
}

func (t *tracker) to(next State) {
	from := t.state
	if !from.CanTransition(next) && t.onIllegal != nil {
		t.onIllegal(from, next)
	}
	t.state = next
	if t.hook != nil {
		t.hook(t.requestID, from, next)
	}
}
