// Package ordernumber выдаёт человекочитаемые номера заказов вида ORD-YYYYMMDD-XXXXXXXXXXXX.
// Уникальность гарантирует UNIQUE-ограничение в БД, генератор лишь делает коллизии маловероятными.
package ordernumber

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Prefix     = "ORD"
	randLength = 12
)

type Generator struct {
	now     func() time.Time
	newUUID func() uuid.UUID
}

type Option func(*Generator)

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithUUIDSource подменяет источник случайной части (для тестов)
func WithUUIDSource(fn func() uuid.UUID) Option {
	return func(g *Generator) { g.newUUID = fn }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		now:     func() time.Time { return time.Now().UTC() },
		newUUID: uuid.New,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next возвращает новый номер заказа
func (g *Generator) Next() string {
	random := strings.ReplaceAll(g.newUUID().String(), "-", "")
	return Prefix + "-" + g.now().Format("20060102") + "-" + strings.ToUpper(random[:randLength])
}
