package services

import (
	"context"

	"civic-polls/pkg/logger"

	"go.uber.org/zap"
)

// LogCodeSender writes codes to the log instead of sending an SMS. Meant for
// development; production wires a gateway behind CodeSender.
type LogCodeSender struct {
	log *logger.Logger
}

func NewLogCodeSender(log *logger.Logger) *LogCodeSender {
	return &LogCodeSender{log: log}
}

func (s *LogCodeSender) SendCode(ctx context.Context, phone, code string) error {
	s.log.Ctx(ctx).Info("one-time code issued",
		zap.String("phone", phone),
		zap.String("code", code),
	)
	return nil
}
