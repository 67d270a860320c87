package api

import (
	"bufio"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"mailbridge/utils"
)

// errorJSON shapes an error response body. AppErrors keep their status
// code; anything else becomes a 500.
func errorJSON(c *fiber.Ctx, err error) error {
	return c.Status(utils.StatusCode(err)).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// setSSEHeaders prepares a response for a server-sent event stream.
func setSSEHeaders(c *fiber.Ctx) {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
}

// writeSSE writes one SSE data frame and flushes it. A failed flush
// means the client went away.
func writeSSE(w *bufio.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("data: " + string(data) + "\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

// queryInt reads an integer query parameter with a fallback.
func queryInt(c *fiber.Ctx, key string, fallback int) int {
	return c.QueryInt(key, fallback)
}
