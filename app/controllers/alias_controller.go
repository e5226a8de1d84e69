package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/institution-matcher/app/models"
	"github.com/institution-matcher/app/requests"
	"github.com/institution-matcher/app/responses"
	"github.com/institution-matcher/internal/matcher"
	"go.uber.org/zap"
)

// AliasRegistrar đăng ký alias đã xác nhận
type AliasRegistrar interface {
	AddAlias(ctx context.Context, req matcher.AliasRequest) (*models.Alias, error)
}

// AliasController controller xử lý alias
type AliasController struct {
	registrar AliasRegistrar
	logger    *zap.Logger
}

// NewAliasController tạo mới AliasController
func NewAliasController(registrar AliasRegistrar, logger *zap.Logger) *AliasController {
	return &AliasController{registrar: registrar, logger: logger}
}

// AddAlias đăng ký alias cho một standard code
func (ac *AliasController) AddAlias(c *gin.Context) {
	var req requests.AliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	alias, err := ac.registrar.AddAlias(c.Request.Context(), matcher.AliasRequest{
		StandardCode: req.StandardCode,
		AliasName:    req.AliasName,
		Source:       req.Source,
		Address:      req.Address,
		LotAddress:   req.LotAddress,
		RegionCode:   req.RegionCode,
	})
	if err != nil {
		respondError(c, ac.logger, "add_alias", err)
		return
	}

	c.JSON(http.StatusCreated, responses.AliasResponse{
		Alias:   alias,
		Message: "Đăng ký alias thành công",
	})
}
