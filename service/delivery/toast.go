package delivery

import "time"

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

const (
	titleSuccess = "✅ Успех"
	titleError   = "❌ Ошибка"
)

// Toast is a transient, user-visible outcome message.
type Toast struct {
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Level          Level     `json:"level"`
	NotificationID int64     `json:"notificationId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func Success(message string) Toast {
	return Toast{Title: titleSuccess, Message: message, Level: LevelSuccess, CreatedAt: time.Now()}
}

func Failure(message string) Toast {
	return Toast{Title: titleError, Message: message, Level: LevelError, CreatedAt: time.Now()}
}

func (t Toast) For(notificationID int64) Toast {
	t.NotificationID = notificationID
	return t
}

func (t Toast) IsError() bool {
	return t.Level == LevelError
}
