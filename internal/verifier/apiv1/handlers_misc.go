package apiv1

import (
	"context"

	"dtw/pkg/model"
)

// StatusChecker is implemented by stores that can probe their backend.
type StatusChecker interface {
	Status(ctx context.Context) error
}

// Health reports service liveness and session store reachability.
func (c *Client) Health(ctx context.Context) (*model.Health, error) {
	ctx, span := c.tracer.Start(ctx, "apiv1:Health")
	defer span.End()

	health := &model.Health{ServiceName: "verifier", Status: "STATUS_OK"}
	if c.statusChecker != nil {
		if err := c.statusChecker.Status(ctx); err != nil {
			c.log.Info("session store probe failed", "err", err.Error())
			health.Status = "STATUS_FAIL"
		}
	}
	return health, nil
}
