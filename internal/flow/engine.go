package flow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"snapbot/internal/metrics"
	"snapbot/internal/models"
	"snapbot/pkg/utils"
)

// Outcome - итог обработки одного сообщения
type Outcome int

const (
	OutcomePrompt    Outcome = iota // задан следующий вопрос
	OutcomeRetry                    // ошибка, тот же вопрос повторен
	OutcomeAborted                  // диалог прерван ошибкой
	OutcomeCompleted                // действие выполнено (Err - ошибка действия)
)

// Result - ответ движка на сообщение
type Result struct {
	Kind    Kind
	Outcome Outcome
	Prompt  string
	Err     error
}

// Engine ведет диалоги пользователей по зарегистрированным определениям.
// Сообщения одного пользователя должны приходить последовательно.
type Engine struct {
	registry *Registry
	sessions *SessionStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine создает движок
func NewEngine(registry *Registry, sessions *SessionStore, logger *zap.Logger) *Engine {
	if sessions == nil {
		sessions = NewSessionStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Start начинает диалог, заменяя активный, и возвращает первый вопрос
func (e *Engine) Start(userID int64, kind Kind, meta map[string]string) (string, error) {
	def, ok := e.registry.Get(kind)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFlow, kind)
	}

	sess := &Session{
		UserID:    userID,
		Kind:      kind,
		Params:    models.Params{},
		Meta:      meta,
		StartedAt: e.now(),
	}
	if prev, replaced := e.sessions.Put(sess); replaced {
		metrics.RecordFlowFinished(string(prev.Kind), metrics.ResultCancelled)
		e.logger.Debug("flow replaced",
			utils.UserID(userID),
			zap.String("previous", string(prev.Kind)),
			utils.Flow(string(kind)),
		)
	}

	metrics.RecordFlowStarted(string(kind))
	return def.Fields[0].Prompt, nil
}

// Active возвращает тип активного диалога пользователя
func (e *Engine) Active(userID int64) (Kind, bool) {
	sess, ok := e.sessions.Get(userID)
	if !ok {
		return "", false
	}
	return sess.Kind, true
}

// Cancel прерывает активный диалог
func (e *Engine) Cancel(userID int64) (Kind, bool) {
	sess, ok := e.sessions.Delete(userID)
	if !ok {
		return "", false
	}
	metrics.RecordFlowFinished(string(sess.Kind), metrics.ResultCancelled)
	return sess.Kind, true
}

// Handle обрабатывает ответ пользователя на текущее поле.
// false означает что активного диалога нет.
func (e *Engine) Handle(ctx context.Context, userID int64, text string) (Result, bool) {
	sess, ok := e.sessions.Get(userID)
	if !ok {
		return Result{}, false
	}

	def, ok := e.registry.Get(sess.Kind)
	if !ok || sess.Step >= len(def.Fields) {
		e.sessions.Delete(userID)
		return Result{Kind: sess.Kind, Outcome: OutcomeAborted, Err: fmt.Errorf("%w: %s", ErrUnknownFlow, sess.Kind)}, true
	}

	field := &def.Fields[sess.Step]
	input, value, inputErr := e.classify(ctx, sess, field, text)

	phase := PhaseCollecting
	if sess.Step == len(def.Fields)-1 {
		phase = PhaseLastField
	}
	tr, ok := Lookup(phase, input)
	if !ok {
		e.sessions.Delete(userID)
		return Result{Kind: sess.Kind, Outcome: OutcomeAborted, Err: fmt.Errorf("no transition for %s/%s", phase, input)}, true
	}

	log := e.logger.With(utils.UserID(userID), utils.Flow(string(sess.Kind)), zap.String("field", field.Name))

	switch tr.Effect {
	case EffectAdvance:
		if input == InputValue {
			sess.Params[field.Name] = value
		}
		sess.Step++
		e.sessions.Put(sess)
		return Result{Kind: sess.Kind, Outcome: OutcomePrompt, Prompt: def.Fields[sess.Step].Prompt}, true

	case EffectRetry:
		log.Debug("field rejected, asking again", zap.Error(inputErr))
		return Result{Kind: sess.Kind, Outcome: OutcomeRetry, Prompt: field.Prompt, Err: inputErr}, true

	case EffectAbort:
		e.sessions.Delete(userID)
		metrics.RecordFlowFinished(string(sess.Kind), metrics.ResultAborted)
		log.Info("flow aborted", zap.Error(inputErr))
		return Result{Kind: sess.Kind, Outcome: OutcomeAborted, Err: inputErr}, true

	case EffectComplete:
		if input == InputValue {
			sess.Params[field.Name] = value
		}
		e.sessions.Delete(userID)

		err := def.Action(ctx, Submission{
			UserID: userID,
			Kind:   sess.Kind,
			Params: sess.Params,
			Meta:   sess.Meta,
		})
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
			log.Warn("flow action failed", zap.Error(err))
		}
		metrics.RecordFlowFinished(string(sess.Kind), result)
		return Result{Kind: sess.Kind, Outcome: OutcomeCompleted, Err: err}, true
	}

	e.sessions.Delete(userID)
	return Result{Kind: sess.Kind, Outcome: OutcomeAborted, Err: fmt.Errorf("unknown effect %s", tr.Effect)}, true
}

// classify разбирает ответ и определяет вид ввода
func (e *Engine) classify(ctx context.Context, sess *Session, field *Field, text string) (InputKind, string, error) {
	if field.isSkip(text) {
		return InputSkip, "", nil
	}

	failed := InputInvalid
	if field.Retry {
		failed = InputRejected
	}

	value, err := field.parse(text)
	if err != nil {
		return failed, "", err
	}
	if field.Validate != nil {
		if err := field.Validate(ctx, sess, value); err != nil {
			return failed, "", err
		}
	}
	return InputValue, value, nil
}

// Sessions возвращает хранилище сессий
func (e *Engine) Sessions() *SessionStore {
	return e.sessions
}
