package common

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Response 统一的响应结构（/api/v1 接口）
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SendJSON 发送JSON响应
func SendJSON(c *app.RequestContext, code int, data interface{}) {
	c.JSON(code, data)
}

// SendSuccessResponse 发送成功响应
func SendSuccessResponse(c *app.RequestContext, data interface{}) {
	SendJSON(c, consts.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// 控制台接口的响应信封，业务失败也返回 HTTP 200
type envelope struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data"`
}

// SendOK 发送 {status:"ok", data}
func SendOK(c *app.RequestContext, data interface{}) {
	SendJSON(c, consts.StatusOK, envelope{Status: "ok", Data: data})
}

// SendStatusError 发送 {status:"error", msg}
func SendStatusError(c *app.RequestContext, msg string) {
	SendJSON(c, consts.StatusOK, envelope{Status: "error", Msg: msg})
}
