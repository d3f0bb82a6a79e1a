package handler

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workeasy-api/internal/middleware"
	appErrors "github.com/noah-isme/workeasy-api/pkg/errors"
)

func callerID(c *gin.Context) string {
	return middleware.ClaimsFromContext(c).UserID()
}

func scopedStoreID(c *gin.Context) string {
	return middleware.StoreIDFromContext(c)
}

// parseTimeParam accepts RFC3339 timestamps or plain dates. endOfDay moves a plain date to the
// last instant of that day so inclusive ranges cover it.
func parseTimeParam(name, raw string, loc *time.Location, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, name+" must be RFC3339 or YYYY-MM-DD")
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
