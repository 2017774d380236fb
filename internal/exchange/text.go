package exchange

import (
	"bytes"
)

// Text хранит любое скалярное значение ответа как текст.
// Биржа отдает числа то строками, то числами; в выгрузку они попадают как есть.
type Text string

// UnmarshalJSON принимает строку, число, bool или null.
// Вложенные объекты и массивы сохраняются сырым JSON.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

// MarshalJSON всегда пишет строку
func (t Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// String возвращает значение
func (t Text) String() string {
	return string(t)
}
