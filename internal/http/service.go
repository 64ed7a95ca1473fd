// Package httpapi exposes the title engine over JSON HTTP. Handlers
// translate between wire structs and engine calls; all policy lives in
// the engine, all privilege checks live here.
package httpapi

import (
	"github.com/maddasher/titlebot/internal/engine"
)

type Service struct {
	eng *engine.Engine
}

func NewService(eng *engine.Engine) *Service {
	return &Service{eng: eng}
}
