package public

import (
	"errors"

	handlershared "github.com/storefront-next/internal/http/handlers/shared"
	"github.com/storefront-next/internal/http/response"
	"github.com/storefront-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系，msg 为空时透出错误文本。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			msg := rule.msg
			if msg == "" {
				msg = err.Error()
			}
			respondError(c, rule.code, msg, nil)
			return
		}
	}
	respondError(c, response.CodeInternal, handlershared.MessageInternal, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var userCommonErrorRules = []mappedHandlerError{
	{target: service.ErrNotFound, code: response.CodeNotFound, msg: "user not found"},
}

var cartErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidCartQuantity, code: response.CodeBadRequest},
	{target: service.ErrProductNotFound, code: response.CodeNotFound},
	{target: service.ErrCartVersionConflict, code: response.CodeConflict},
}

// 支付失败时透出网关的拒绝原因
var orderCreateErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentMethodRequired, code: response.CodeBadRequest},
	{target: service.ErrIdempotencyKeyInvalid, code: response.CodeBadRequest},
	{target: service.ErrEmptyCart, code: response.CodeBadRequest},
	{target: service.ErrOutOfStock, code: response.CodeBadRequest},
	{target: service.ErrPaymentDeclined, code: response.CodeBadRequest},
	{target: service.ErrPaymentRequiresAction, code: response.CodeBadRequest, msg: service.ErrPaymentRequiresAction.Error()},
	{target: service.ErrPaymentFailed, code: response.CodeBadRequest, msg: service.ErrPaymentFailed.Error()},
	{target: service.ErrCheckoutInProgress, code: response.CodeConflict},
	{target: service.ErrIdempotencyKeyRefunded, code: response.CodeConflict},
}

func respondCartError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(cartErrorRules, userCommonErrorRules))
}

func respondOrderCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(orderCreateErrorRules, userCommonErrorRules))
}
