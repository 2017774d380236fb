package websocket

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event - сообщение подписчикам /ws/events.
//
// Типы событий:
// - accountLinked: пользователь привязал аккаунт
// - queryExecuted: выполнен запрос к бирже (интерактивно или по расписанию)
// - jobRun: сработало ежедневное задание
// - scheduleChanged: задание создано или удалено
// - hello: первое сообщение после подключения
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// HelloData - данные приветственного сообщения
type HelloData struct {
	Clients int `json:"clients"`
}

// EventTypeHello - тип приветственного сообщения
const EventTypeHello = "hello"

// encodeEvent сериализует событие в одну строку JSON
func encodeEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
