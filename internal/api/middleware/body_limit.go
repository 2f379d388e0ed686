package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BodyLimit 请求体大小限制中间件
// maxBytes: 默认上限；routeMax: 按 "METHOD 路由模板" 覆盖（上传接口）
// 超限时读取请求体返回 *http.MaxBytesError，由 Handler 映射为 413
func BodyLimit(maxBytes int64, routeMax map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if n, ok := routeMax[c.Request.Method+" "+c.FullPath()]; ok {
			limit = n
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}

		c.Next()
	}
}
