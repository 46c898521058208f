package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// subject names the caller in cache and rate-limit keys: the user id when
// authenticated, "anon" otherwise.
func subject(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
