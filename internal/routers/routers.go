// Package routers
package routers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"mentor-api/internal/ctx"
	"mentor-api/internal/metrics"
	"mentor-api/internal/shared"
)

// bindJSON reads the body into dest. When ok is false the response has been
// written and the handler should return err as is.
func bindJSON(c *ctx.Context, dest any) (ok bool, err error) {
	body, rerr := io.ReadAll(c.Request().Body)
	if rerr != nil {
		c.Log.Warnw("Failed to read request body", "error", rerr.Error())
		c.LogValues.AddError(errors.Join(shared.ErrInvalidRequest, rerr))
		return false, c.JSON(http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
	}
	if uerr := json.Unmarshal(body, dest); uerr != nil {
		c.Log.Warnw("Failed to parse request body", "error", uerr.Error())
		c.LogValues.AddError(errors.Join(shared.ErrInvalidRequest, uerr))
		return false, c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "invalid JSON format"})
	}
	return true, nil
}

// envelope answers with the success or error envelope. Logical failures keep
// HTTP 200; callers read the status field.
func envelope(c *ctx.Context, endpoint string, success any, err error) error {
	if err != nil {
		kind := shared.ErrorKind(err)
		c.LogValues.AddError(err)
		c.LogValues.EnvelopeStatus = shared.StatusError
		c.LogValues.ErrorKind = kind
		c.LogValues.LogLevel = "WARN"
		if kind == "internal" || kind == "upstream" || kind == "timeout" {
			c.LogValues.LogLevel = "ERROR"
		}
		metrics.Envelopes.WithLabelValues(endpoint, shared.StatusError).Inc()
		return c.JSON(http.StatusOK, shared.ErrorEnvelope(err))
	}
	c.LogValues.EnvelopeStatus = shared.StatusSuccess
	metrics.Envelopes.WithLabelValues(endpoint, shared.StatusSuccess).Inc()
	return c.JSON(http.StatusOK, success)
}
