package helpers

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"dtw/pkg/logger"
	"dtw/pkg/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Check validates a tagged struct and logs the failure detail. The raw
// validator error stays server side; callers translate it into their own
// client facing error.
func Check(ctx context.Context, cfg *model.Cfg, s any, log *logger.Log) error {
	if err := validate.StructCtx(ctx, s); err != nil {
		log.Debug("validation failed", "type", fmt.Sprintf("%T", s), "err", err.Error())
		return err
	}
	return nil
}

// CheckSimple validates without logging, for bootstrap paths that have no
// logger yet.
func CheckSimple(s any) error {
	return validate.Struct(s)
}
