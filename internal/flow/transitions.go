package flow

import "fmt"

// Phase - положение диалога относительно последнего поля
type Phase int

const (
	PhaseCollecting Phase = iota // впереди есть еще поля
	PhaseLastField               // текущее поле последнее
	PhaseDone                    // действие выполнено, сессия удалена
	PhaseAborted                 // диалог прерван ошибкой, сессия удалена
)

func (p Phase) String() string {
	switch p {
	case PhaseCollecting:
		return "collecting"
	case PhaseLastField:
		return "last_field"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// InputKind - классификация ответа пользователя на текущее поле
type InputKind int

const (
	InputSkip     InputKind = iota // /skip на необязательном поле
	InputValue                     // значение разобрано и прошло проверку
	InputInvalid                   // ошибка разбора, поле без повтора
	InputRejected                  // ошибка разбора или проверки, поле с повтором
)

func (k InputKind) String() string {
	switch k {
	case InputSkip:
		return "skip"
	case InputValue:
		return "value"
	case InputInvalid:
		return "invalid"
	case InputRejected:
		return "rejected"
	default:
		return fmt.Sprintf("InputKind(%d)", int(k))
	}
}

// Effect - побочный эффект перехода
type Effect int

const (
	EffectAdvance  Effect = iota // сохранить значение, задать следующий вопрос
	EffectComplete               // сохранить значение, удалить сессию, выполнить действие
	EffectAbort                  // удалить сессию, сообщить ошибку
	EffectRetry                  // остаться на поле, сообщить ошибку и повторить вопрос
)

func (e Effect) String() string {
	switch e {
	case EffectAdvance:
		return "advance"
	case EffectComplete:
		return "complete"
	case EffectAbort:
		return "abort"
	case EffectRetry:
		return "retry"
	default:
		return fmt.Sprintf("Effect(%d)", int(e))
	}
}

type transitionKey struct {
	phase Phase
	input InputKind
}

// Transition - следующее состояние и эффект
type Transition struct {
	Next   Phase
	Effect Effect
}

// Transitions - таблица переходов диалога
var Transitions = map[transitionKey]Transition{
	{PhaseCollecting, InputSkip}:     {PhaseCollecting, EffectAdvance},
	{PhaseCollecting, InputValue}:    {PhaseCollecting, EffectAdvance},
	{PhaseCollecting, InputInvalid}:  {PhaseAborted, EffectAbort},
	{PhaseCollecting, InputRejected}: {PhaseCollecting, EffectRetry},

	{PhaseLastField, InputSkip}:     {PhaseDone, EffectComplete},
	{PhaseLastField, InputValue}:    {PhaseDone, EffectComplete},
	{PhaseLastField, InputInvalid}:  {PhaseAborted, EffectAbort},
	{PhaseLastField, InputRejected}: {PhaseLastField, EffectRetry},
}

// Lookup возвращает переход для пары (фаза, ввод)
func Lookup(phase Phase, input InputKind) (Transition, bool) {
	t, ok := Transitions[transitionKey{phase, input}]
	return t, ok
}

// IsTerminal возвращает true для фаз, после которых сессии нет
func IsTerminal(p Phase) bool {
	return p == PhaseDone || p == PhaseAborted
}
