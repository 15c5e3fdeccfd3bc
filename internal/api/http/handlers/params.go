package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

func pathInt64(c *fiber.Ctx, name string) (int64, error) {
	val, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil {
		return 0, apperrors.NewInvalidArgument("invalid "+name, map[string]any{name: c.Params(name)})
	}
	return val, nil
}

func queryInt64(c *fiber.Ctx, name string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperrors.NewInvalidArgument("invalid "+name, map[string]any{name: raw})
	}
	return &val, nil
}

func queryInt64List(c *fiber.Ctx, name string) ([]int64, error) {
	parts := queryList(c, name)
	out := make([]int64, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, apperrors.NewInvalidArgument("invalid "+name, map[string]any{name: part})
		}
		out = append(out, val)
	}
	return out, nil
}

// queryMillis parses a unix millisecond timestamp.
func queryMillis(c *fiber.Ctx, name string) (*time.Time, error) {
	ms, err := queryInt64(c, name)
	if err != nil || ms == nil {
		return nil, err
	}
	t := time.UnixMilli(*ms).UTC()
	return &t, nil
}

func queryBool(c *fiber.Ctx, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.NewInvalidArgument("invalid "+name, map[string]any{name: raw})
	}
	return &val, nil
}

func queryList(c *fiber.Ctx, name string) []string {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func queryLimit(c *fiber.Ctx) (int, error) {
	limit, err := queryInt64(c, "limit")
	if err != nil || limit == nil {
		return 0, err
	}
	if *limit < 0 {
		return 0, apperrors.NewInvalidArgument("limit must not be negative", map[string]any{"limit": *limit})
	}
	return int(*limit), nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"reason": err.Error()})
	}
	return nil
}
