package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/linyuhan/shophub-backend/pkg/errors"
)

// ParseQueryInt reads an integer query parameter, applying a default and
// clamping bounds.
func ParseQueryInt(r *http.Request, name string, fallback, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be an integer", name))
	}
	if value < min {
		value = min
	}
	if value > max {
		value = max
	}
	return value, nil
}
