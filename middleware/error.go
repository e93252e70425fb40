package middleware

import (
	stderrors "errors"

	"github.com/aisgo/gorm-behaviors/errors"
	"github.com/aisgo/gorm-behaviors/logger"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// NewErrorHandler 返回统一的 Fiber ErrorHandler
// BizError 按错误码映射状态码，fiber.Error 保留原状态码
func NewErrorHandler(log *logger.Logger) fiber.ErrorHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return func(c fiber.Ctx, err error) error {
		if err == nil {
			return nil
		}

		var fe *fiber.Error
		if stderrors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"code": fe.Code, "msg": fe.Message})
		}

		status, body := errors.ToHTTPResponse(err)
		if status >= fiber.StatusInternalServerError {
			log.WithContext(c.Context()).Error("request failed", zap.Error(err), zap.String("path", c.Path()))
		}
		return c.Status(status).JSON(body)
	}
}
