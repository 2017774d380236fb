package flow

import (
	"context"
	"errors"
	"testing"

	"snapbot/internal/models"
)

const (
	testPosition Kind = "position"
	testSchedule Kind = "schedulePosition"
	testRemove   Kind = "removeSchedule"
	testHistory  Kind = "historicalFunding"
)

type recorder struct {
	calls []Submission
	err   error
}

func (r *recorder) action(_ context.Context, sub Submission) error {
	r.calls = append(r.calls, sub)
	return r.err
}

func newTestEngine(t *testing.T, rec *recorder) *Engine {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister(Definition{
		Kind: testPosition,
		Fields: []Field{
			{Name: models.ParamMarket, Prompt: "market?"},
			{Name: models.ParamStatus, Prompt: "status?"},
			{Name: models.ParamLimit, Prompt: "limit?"},
			{Name: models.ParamCreatedBeforeOrAt, Prompt: "date?", Kind: FieldDate},
		},
		Action: rec.action,
	})
	reg.MustRegister(Definition{
		Kind: testSchedule,
		Fields: []Field{
			{Name: models.ParamMarket, Prompt: "market?"},
			{Name: "timeOfDay", Prompt: "time?", Kind: FieldTimeOfDay, Required: true},
		},
		Action: rec.action,
	})
	reg.MustRegister(Definition{
		Kind: testHistory,
		Fields: []Field{
			{Name: models.ParamMarket, Prompt: "market (required)?", Required: true},
			{Name: models.ParamEffectiveBeforeOrAt, Prompt: "date?", Kind: FieldDate},
		},
		Action: rec.action,
	})
	reg.MustRegister(Definition{
		Kind: testRemove,
		Fields: []Field{{
			Name: "index", Prompt: "index?", Kind: FieldIndex, Required: true, Retry: true,
			Validate: func(_ context.Context, s *Session, value string) error {
				if value != "0" && value != "1" && value != "2" {
					return errors.New("Schedule ID is not vaild.")
				}
				return nil
			},
		}},
		Action: rec.action,
	})
	return NewEngine(reg, nil, nil)
}

func send(t *testing.T, e *Engine, userID int64, text string) Result {
	t.Helper()
	res, ok := e.Handle(context.Background(), userID, text)
	if !ok {
		t.Fatalf("нет активного диалога для %q", text)
	}
	return res
}

func TestEngine_SkipLeavesFieldsAbsent(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, rec)

	prompt, err := e.Start(42, testPosition, map[string]string{"accountKey": "account_1"})
	if err != nil || prompt != "market?" {
		t.Fatalf("Start = %q, %v", prompt, err)
	}

	if res := send(t, e, 42, "BTC-USD"); res.Outcome != OutcomePrompt || res.Prompt != "status?" {
		t.Errorf("шаг 1: %+v", res)
	}
	send(t, e, 42, "/SKIP")
	send(t, e, 42, "10")
	res := send(t, e, 42, "/skip")
	if res.Outcome != OutcomeCompleted || res.Err != nil {
		t.Fatalf("ожидалось завершение: %+v", res)
	}

	if len(rec.calls) != 1 {
		t.Fatalf("действие вызвано %d раз", len(rec.calls))
	}
	sub := rec.calls[0]
	want := models.Params{models.ParamMarket: "BTC-USD", models.ParamLimit: "10"}
	if len(sub.Params) != len(want) || sub.Params[models.ParamMarket] != "BTC-USD" || sub.Params[models.ParamLimit] != "10" {
		t.Errorf("params = %v, want %v", sub.Params, want)
	}
	if _, ok := sub.Params[models.ParamStatus]; ok {
		t.Error("пропущенное поле не должно попадать в параметры")
	}
	if sub.Meta["accountKey"] != "account_1" || sub.UserID != 42 || sub.Kind != testPosition {
		t.Errorf("submission = %+v", sub)
	}
	if _, active := e.Active(42); active {
		t.Error("сессия должна удаляться после завершения")
	}
}

func TestEngine_DateReformatted(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, rec)
	e.Start(1, testPosition, nil)
	send(t, e, 1, "/skip")
	send(t, e, 1, "/skip")
	send(t, e, 1, "/skip")
	send(t, e, 1, "2024-03-05 14:30")

	if got := rec.calls[0].Params[models.ParamCreatedBeforeOrAt]; got != "2024-03-05T14:30:00" {
		t.Errorf("date = %q, want 2024-03-05T14:30:00", got)
	}
}

func TestEngine_InvalidDateAborts(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, rec)
	e.Start(1, testHistory, nil)
	send(t, e, 1, "BTC-USD")

	res := send(t, e, 1, "yesterday")
	if res.Outcome != OutcomeAborted || !errors.Is(res.Err, ErrInvalidDate) {
		t.Errorf("ожидалось прерывание с ErrInvalidDate: %+v", res)
	}
	if len(rec.calls) != 0 {
		t.Error("действие не должно вызываться")
	}
	if _, ok := e.Handle(context.Background(), 1, "again"); ok {
		t.Error("сессия должна быть удалена")
	}
}

func TestEngine_RequiredFieldTakesSkipLiterally(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, rec)
	e.Start(1, testHistory, nil)

	res := send(t, e, 1, "/skip")
	if res.Outcome != OutcomePrompt {
		t.Fatalf("res = %+v", res)
	}
	send(t, e, 1, "/skip")

	if got := rec.calls[0].Params[models.ParamMarket]; got != "/skip" {
		t.Errorf("market = %q, want literal /skip", got)
	}
	if _, ok := rec.calls[0].Params[models.ParamEffectiveBeforeOrAt]; ok {
		t.Error("необязательная дата пропущена")
	}
}

func TestEngine_SkipTokenMatchedExactly(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, rec)
	e.Start(1, testPosition, nil)

	send(t, e, 1, " /skip")
	send(t, e, 1, "/Skip")
	send(t, e, 1, "/skip")
	send(t, e, 1, "/skip")

	if len(rec.calls) != 1 {
		t.Fatalf("действие вызвано %d раз", len(rec.calls))
	}
	params := rec.calls[0].Params
	if got := params[models.ParamMarket]; got != " /skip" {
		t.Errorf("market = %q, want literal \" /skip\"", got)
	}
	if _, ok := params[models.ParamStatus]; ok {
		t.Error("/Skip должен пропускать поле")
	}
}

func TestEngine_TimeOfDay(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		outcome Outcome
	}{
		{"нормализация", "9:05", "09:05", OutcomeCompleted},
		{"как есть", "23:59", "23:59", OutcomeCompleted},
		{"вне диапазона", "24:00", "", OutcomeAborted},
		{"мусор", "noon", "", OutcomeAborted},
		{"пропуск обязательного", "/skip", "", OutcomeAborted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			e := newTestEngine(t, rec)
			e.Start(1, testSchedule, nil)
			send(t, e, 1, "/skip")

			res := send(t, e, 1, tt.input)
			if res.Outcome != tt.outcome {
				t.Fatalf("outcome = %v, want %v (%v)", res.Outcome, tt.outcome, res.Err)
			}
			if tt.outcome == OutcomeCompleted && rec.calls[0].Params["timeOfDay"] != tt.want {
				t.Errorf("timeOfDay = %q", rec.calls[0].Params["timeOfDay"])
			}
		})
	}
}

func TestEngine_RemoveRetriesOnRejectedIndex(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, rec)
	e.Start(1, testRemove, nil)

	for _, bad := range []string{"abc", "-1", "7"} {
		res := send(t, e, 1, bad)
		if res.Outcome != OutcomeRetry || res.Prompt != "index?" || res.Err == nil {
			t.Errorf("%q: ожидался повтор, got %+v", bad, res)
		}
	}
	if kind, ok := e.Active(1); !ok || kind != testRemove {
		t.Fatal("диалог должен оставаться на том же поле")
	}

	res := send(t, e, 1, " 1 ")
	if res.Outcome != OutcomeCompleted || rec.calls[0].Params["index"] != "1" {
		t.Errorf("res = %+v, calls = %v", res, rec.calls)
	}
}

func TestEngine_ActionErrorStillClearsSession(t *testing.T) {
	rec := &recorder{err: errors.New("No positions data available for")}
	e := newTestEngine(t, rec)
	e.Start(1, testSchedule, nil)
	send(t, e, 1, "BTC-USD")

	res := send(t, e, 1, "10:00")
	if res.Outcome != OutcomeCompleted || res.Err == nil {
		t.Errorf("ошибка действия должна возвращаться: %+v", res)
	}
	if _, ok := e.Active(1); ok {
		t.Error("сессия удаляется и при ошибке действия")
	}
}

func TestEngine_OneFieldPerMessage(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, rec)
	e.Start(1, testSchedule, nil)

	send(t, e, 1, "BTC-USD 10:00")
	if len(rec.calls) != 0 {
		t.Fatal("одно сообщение заполняет одно поле")
	}
	send(t, e, 1, "10:00")
	if rec.calls[0].Params[models.ParamMarket] != "BTC-USD 10:00" {
		t.Errorf("market = %q", rec.calls[0].Params[models.ParamMarket])
	}
}

func TestEngine_StartReplacesAndCancel(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, rec)
	e.Start(1, testPosition, nil)
	send(t, e, 1, "BTC-USD")

	prompt, err := e.Start(1, testHistory, nil)
	if err != nil || prompt != "market (required)?" {
		t.Fatalf("Start = %q, %v", prompt, err)
	}
	if kind, _ := e.Active(1); kind != testHistory {
		t.Errorf("active = %s", kind)
	}

	if kind, ok := e.Cancel(1); !ok || kind != testHistory {
		t.Errorf("Cancel = %s, %v", kind, ok)
	}
	if _, ok := e.Cancel(1); ok {
		t.Error("повторный Cancel ничего не отменяет")
	}
	if _, ok := e.Handle(context.Background(), 1, "x"); ok {
		t.Error("после Cancel сообщения не попадают в диалог")
	}
}

func TestEngine_UsersIndependent(t *testing.T) {
	rec := &recorder{}
	e := newTestEngine(t, rec)
	e.Start(1, testSchedule, nil)
	e.Start(2, testSchedule, nil)

	send(t, e, 1, "BTC-USD")
	send(t, e, 2, "ETH-USD")
	send(t, e, 2, "08:00")
	send(t, e, 1, "09:00")

	if len(rec.calls) != 2 || rec.calls[0].UserID != 2 || rec.calls[1].Params[models.ParamMarket] != "BTC-USD" {
		t.Errorf("calls = %+v", rec.calls)
	}
}

func TestEngine_StartUnknown(t *testing.T) {
	e := newTestEngine(t, &recorder{})
	if _, err := e.Start(1, "nope", nil); !errors.Is(err, ErrUnknownFlow) {
		t.Errorf("err = %v, want ErrUnknownFlow", err)
	}
}

func TestRegistry_Validation(t *testing.T) {
	noop := func(context.Context, Submission) error { return nil }
	tests := []struct {
		name string
		def  Definition
		want error
	}{
		{"без полей", Definition{Kind: "a", Action: noop}, ErrEmptyFlow},
		{"без действия", Definition{Kind: "a", Fields: []Field{{Name: "x"}}}, ErrMissingAction},
		{"повтор поля", Definition{Kind: "a", Fields: []Field{{Name: "x"}, {Name: "x"}}, Action: noop}, ErrDuplicateField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewRegistry().Register(tt.def); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	reg := NewRegistry()
	def := Definition{Kind: "a", Fields: []Field{{Name: "x"}}, Action: noop}
	reg.MustRegister(def)
	if err := reg.Register(def); !errors.Is(err, ErrDuplicateFlow) {
		t.Errorf("err = %v, want ErrDuplicateFlow", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d", reg.Len())
	}
}
