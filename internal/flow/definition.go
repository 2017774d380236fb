// Package flow реализует пошаговые диалоги: каждое сообщение пользователя
// заполняет одно поле, последнее поле запускает привязанное действие.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"snapbot/internal/models"
	"snapbot/pkg/utils"
)

// SkipToken - ответ, оставляющий необязательное поле пустым (без учета регистра)
const SkipToken = "/skip"

var (
	ErrInvalidDate      = utils.ErrInvalidDate
	ErrInvalidTimeOfDay = utils.ErrInvalidTimeOfDay
	ErrInvalidIndex     = utils.ErrInvalidIndex

	ErrUnknownFlow    = errors.New("unknown flow")
	ErrDuplicateFlow  = errors.New("flow already registered")
	ErrEmptyFlow      = errors.New("flow has no fields")
	ErrNoActiveFlow   = errors.New("no active flow")
	ErrMissingAction  = errors.New("flow has no action")
	ErrDuplicateField = errors.New("duplicate field name")
)

// Kind - тип диалога
type Kind string

// FieldKind определяет разбор ответа пользователя
type FieldKind int

const (
	// FieldText принимается как есть
	FieldText FieldKind = iota
	// FieldDate: YYYY-MM-DD HH:mm в UTC, сохраняется как YYYY-MM-DDTHH:mm:ss
	FieldDate
	// FieldTimeOfDay: HH:MM 24 часа, сохраняется с ведущими нулями
	FieldTimeOfDay
	// FieldIndex - неотрицательное целое
	FieldIndex
	// FieldCredentials принимается как есть, проверяет действие
	FieldCredentials
)

func (k FieldKind) String() string {
	switch k {
	case FieldText:
		return "text"
	case FieldDate:
		return "date"
	case FieldTimeOfDay:
		return "timeOfDay"
	case FieldIndex:
		return "index"
	case FieldCredentials:
		return "credentials"
	default:
		return "FieldKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ValidateFunc дополнительно проверяет разобранное значение поля
type ValidateFunc func(ctx context.Context, s *Session, value string) error

// Field - одно поле диалога
type Field struct {
	Name     string
	Prompt   string
	Kind     FieldKind
	Required bool
	// Retry оставляет диалог на том же поле при ошибке разбора или проверки.
	// Без Retry ошибка завершает диалог.
	Retry    bool
	Validate ValidateFunc
}

// parse разбирает ответ согласно типу поля
func (f *Field) parse(text string) (string, error) {
	switch f.Kind {
	case FieldDate:
		return utils.ParseInputDate(text)
	case FieldTimeOfDay:
		return utils.ParseTimeOfDay(text)
	case FieldIndex:
		n, err := utils.ParseIndex(text)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	default:
		return text, nil
	}
}

// isSkip - пропуск разрешен только для необязательных полей, токен сравнивается без обрезки пробелов
func (f *Field) isSkip(text string) bool {
	return !f.Required && strings.EqualFold(text, SkipToken)
}

// Submission - собранные значения, передаваемые действию
type Submission struct {
	UserID int64
	Kind   Kind
	Params models.Params
	Meta   map[string]string
}

// Action выполняется после последнего поля
type Action func(ctx context.Context, sub Submission) error

// Definition описывает диалог: упорядоченные поля и действие
type Definition struct {
	Kind   Kind
	Fields []Field
	Action Action
}

func (d *Definition) validate() error {
	if d.Kind == "" {
		return fmt.Errorf("%w: empty kind", ErrUnknownFlow)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFlow, d.Kind)
	}
	if d.Action == nil {
		return fmt.Errorf("%w: %s", ErrMissingAction, d.Kind)
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if seen[f.Name] {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateField, d.Kind, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Registry - набор зарегистрированных диалогов
type Registry struct {
	defs map[Kind]*Definition
}

// NewRegistry создает пустой реестр
func NewRegistry() *Registry {
	return &Registry{defs: make(map[Kind]*Definition)}
}

// Register добавляет диалог
func (r *Registry) Register(def Definition) error {
	if err := def.validate(); err != nil {
		return err
	}
	if _, ok := r.defs[def.Kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateFlow, def.Kind)
	}
	d := def
	d.Fields = append([]Field(nil), def.Fields...)
	r.defs[def.Kind] = &d
	return nil
}

// MustRegister как Register, но паникует при ошибке (для статических таблиц)
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get возвращает диалог по типу
func (r *Registry) Get(kind Kind) (*Definition, bool) {
	d, ok := r.defs[kind]
	return d, ok
}

// Len возвращает количество зарегистрированных диалогов
func (r *Registry) Len() int {
	return len(r.defs)
}
