package handler

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/taksh05/Assignment-Portal/pkg/errors"
	"github.com/taksh05/Assignment-Portal/pkg/response"
	"github.com/taksh05/Assignment-Portal/pkg/storage"
)

// respondError 业务错误按类别映射状态码，其余错误一律 500 且不暴露细节
// 原始错误挂到 c.Errors，由日志中间件记录
func respondError(c *gin.Context, err error) {
	if appErr, ok := apperrors.As(err); ok {
		response.Error(c, appErr.Kind.HTTPStatus(), appErr.Code, appErr.Message)
		return
	}
	if isTooLarge(err) {
		respondTooLarge(c)
		return
	}
	_ = c.Error(err)
	response.InternalError(c)
}

// respondBindError 请求体超限返回 413，其余为参数校验失败
func respondBindError(c *gin.Context, err error) {
	if isTooLarge(err) {
		respondTooLarge(c)
		return
	}
	response.ValidationFailed(c, err)
}

func respondTooLarge(c *gin.Context) {
	response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge)
}

// formUpload 读取 multipart 中的 file 字段
// 未上传时返回 nil；调用方负责在使用后执行 release
func formUpload(c *gin.Context) (*storage.Upload, func(), error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, func() {}, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &storage.Upload{Name: fh.Filename, Size: fh.Size, Reader: f}, func() { f.Close() }, nil
}
