package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const maxStackBytes = 8 << 10

// Recovery converts a panic in any handler into a 500 and logs it with the
// request it happened on. The response carries the request id so a patient
// report can be matched with the log line.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				stack := make([]byte, maxStackBytes)
				stack = stack[:runtime.Stack(stack, false)]

				req := c.Request()
				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Str("request_id", rid).
					Str("method", req.Method).
					Str("path", req.URL.Path).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", stack).
					Msg("panic recovered")

				msg := "internal server error"
				if rid != "" {
					msg = fmt.Sprintf("internal server error (request %s)", rid)
				}
				err = echo.NewHTTPError(http.StatusInternalServerError, msg)
			}()
			return next(c)
		}
	}
}
