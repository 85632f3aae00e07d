package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Body struct {
	Code  int         `json:"code"`
	Data  interface{} `json:"data"`
	Msg   string      `json:"msg"`
	Error string      `json:"error,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, "")
}

func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, "")
}

func Error(c *gin.Context, status int, msg string) {
	ErrorWithCode(c, status, "", msg)
}

// ErrorWithCode adds a stable machine-readable code next to the message.
func ErrorWithCode(c *gin.Context, status int, code, msg string) {
	c.JSON(status, Body{
		Code:  status,
		Data:  gin.H{},
		Msg:   msg,
		Error: code,
	})
}

func JSON(c *gin.Context, status int, data interface{}, msg string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(status, Body{
		Code: status,
		Data: data,
		Msg:  msg,
	})
}
