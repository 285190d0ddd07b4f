package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/iba-dss/hxd-api/core"
	sheetsvc "github.com/iba-dss/hxd-api/services/sheets"
)

// submissionProxy relays a request body to the spreadsheet backend with the
// server-held secret attached, returning the upstream JSON verbatim. It keeps
// its own response contract ({result, message} envelopes) instead of the API's
// error handler so existing form clients keep working unchanged.
func submissionProxy(client *sheetsvc.Client, logger core.Logger) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if ctx.Request().Method != http.MethodPost {
			return ctx.JSON(http.StatusMethodNotAllowed, echo.Map{
				"result":  "error",
				"message": "Method not allowed",
			})
		}
		if !client.Configured() {
			logger.Error("proxy: destination URL or API secret not configured")
			return ctx.JSON(http.StatusInternalServerError, echo.Map{
				"result":  "error",
				"message": "Server Misconfiguration",
			})
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(ctx.Request().Body).Decode(&payload); err != nil {
			return proxyError(ctx, err)
		}

		data, err := client.Forward(ctx.Request().Context(), payload)
		if err != nil {
			logger.Error(fmt.Sprintf("proxy: forwarding failed: %v", err), errors.Wrap(err, "forwarding"))
			return proxyError(ctx, err)
		}
		return ctx.JSONBlob(http.StatusOK, data)
	}
}

func proxyError(ctx echo.Context, err error) error {
	return ctx.JSON(http.StatusInternalServerError, echo.Map{
		"result":  "error",
		"message": "Proxy Error: " + err.Error(),
	})
}
