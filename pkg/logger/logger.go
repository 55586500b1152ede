package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New создает JSON-логгер в stdout с полем app в каждой записи
func New(service, logLevel string) *logrus.Logger {
	return NewWithOutput(os.Stdout, service, logLevel)
}

// NewWithOutput то же, что New, но пишет в out
func NewWithOutput(out io.Writer, service, logLevel string) *logrus.Logger {
	log := logrus.New()

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})

	log.SetOutput(out)

	// Уровень логирования
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel // Уровень по умолчанию, если передан некорректный
	}
	log.SetLevel(level)

	if service != "" {
		log.AddHook(serviceHook{service: service})
	}
	return log
}

// serviceHook добавляет имя приложения, не перезаписывая явно заданное поле
type serviceHook struct {
	service string
}

func (h serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["app"]; !ok {
		entry.Data["app"] = h.service
	}
	return nil
}
