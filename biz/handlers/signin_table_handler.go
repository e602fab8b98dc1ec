package handlers

import (
	"context"

	"console-checkout/biz"
	"console-checkout/biz/services"
	"console-checkout/biz/signin"
	"console-checkout/common"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SigninTableEditor 编辑器视图
type SigninTableEditor struct {
	Columns []signin.Column      `json:"columns"`
	Rows    []signin.RowView     `json:"rows"`
	Catalog []signin.CatalogItem `json:"catalog"`
}

// PutSigninTableRequest 整表替换请求体
type PutSigninTableRequest struct {
	Rows signin.Table `json:"rows"`
}

func tableTarget(c *app.RequestContext) (string, string, error) {
	owner, application := c.Param("owner"), c.Param("name")
	if err := biz.ValidateName("owner", owner); err != nil {
		return "", "", err
	}
	if err := biz.ValidateName("application", application); err != nil {
		return "", "", err
	}
	return owner, application, nil
}

// GetSigninTable GET /api/v1/applications/:owner/:name/signin-table
func GetSigninTable(ctx context.Context, c *app.RequestContext) {
	owner, application, err := tableTarget(c)
	if err != nil {
		common.SendError(c, err)
		return
	}

	table, err := getDeps().Tables.Get(ctx, owner, application)
	if err != nil {
		common.SendError(c, err)
		return
	}
	common.SendSuccessResponse(c, table)
}

// PutSigninTable PUT /api/v1/applications/:owner/:name/signin-table
func PutSigninTable(ctx context.Context, c *app.RequestContext) {
	owner, application, err := tableTarget(c)
	if err != nil {
		common.SendError(c, err)
		return
	}

	var req PutSigninTableRequest
	if err := c.BindJSON(&req); err != nil {
		common.SendError(c, common.ErrInvalidRequest.WithDetails("Failed to bind request: "+err.Error()))
		return
	}

	saved, err := getDeps().Tables.Replace(ctx, owner, application, req.Rows)
	if err != nil {
		common.LogStageWithLevel(c, zapcore.WarnLevel, "replace_failed", zap.Error(err))
		common.SendError(c, err)
		return
	}
	common.SendSuccessResponse(c, saved)
}

// ApplySigninTableIntent POST /api/v1/applications/:owner/:name/signin-table/intents
func ApplySigninTableIntent(ctx context.Context, c *app.RequestContext) {
	owner, application, err := tableTarget(c)
	if err != nil {
		common.SendError(c, err)
		return
	}

	var req services.IntentRequest
	if err := c.BindJSON(&req); err != nil {
		common.SendError(c, common.ErrInvalidRequest.WithDetails("Failed to bind request: "+err.Error()))
		return
	}
	common.LogStage(c, "intent_received", zap.String("op", req.Op), zap.Int("row_index", req.Index), zap.String("field", req.Field))

	table, err := getDeps().Tables.Apply(ctx, owner, application, req)
	if err != nil {
		common.LogStageWithLevel(c, zapcore.WarnLevel, "intent_rejected", zap.Error(err))
		common.SendError(c, err)
		return
	}
	common.SendSuccessResponse(c, table)
}

// GetSigninTableEditor GET /api/v1/applications/:owner/:name/signin-table/editor
func GetSigninTableEditor(ctx context.Context, c *app.RequestContext) {
	owner, application, err := tableTarget(c)
	if err != nil {
		common.SendError(c, err)
		return
	}

	table, err := getDeps().Tables.Get(ctx, owner, application)
	if err != nil {
		common.SendError(c, err)
		return
	}
	common.SendSuccessResponse(c, SigninTableEditor{
		Columns: signin.Columns(),
		Rows:    signin.View(table),
		Catalog: signin.Catalog(),
	})
}
