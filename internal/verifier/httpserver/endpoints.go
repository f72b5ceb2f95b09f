package httpserver

import (
	"context"

	"github.com/gin-gonic/gin"

	"dtw/internal/verifier/apiv1"
	"dtw/pkg/vcerror"
)

// endpointPresentationValidation accepts a bare JSON array of presentations.
func (s *Service) endpointPresentationValidation(ctx context.Context, c *gin.Context) (any, error) {
	var presentations []string
	if err := c.ShouldBindJSON(&presentations); err != nil {
		return nil, vcerror.New(vcerror.ErrPresInvalidPresentationValidationRequest, "malformed request body")
	}
	return s.apiv1.PresentationValidation(ctx, &apiv1.PresentationValidationRequest{Presentations: presentations})
}

func (s *Service) endpointModifyPresentationDefinition(ctx context.Context, c *gin.Context) (any, error) {
	request := &apiv1.ModifyPresentationDefinitionRequest{}
	if err := c.ShouldBindJSON(request); err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "malformed request body")
	}
	return s.apiv1.ModifyPresentationDefinition(ctx, request)
}

func (s *Service) endpointVerify(ctx context.Context, c *gin.Context) (any, error) {
	request := &apiv1.VerifyRequest{}
	if err := c.ShouldBindJSON(request); err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "malformed request body")
	}
	return s.apiv1.Verify(ctx, request)
}

func (s *Service) endpointGetVerifyResult(ctx context.Context, c *gin.Context) (any, error) {
	request := &apiv1.GetVerifyResultRequest{}
	if err := c.ShouldBindQuery(request); err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "malformed query")
	}
	return s.apiv1.GetVerifyResult(ctx, request)
}

func (s *Service) endpointGetAuthorizationRequest(ctx context.Context, c *gin.Context) (any, error) {
	request := &apiv1.AuthorizationRequestQuery{}
	if err := c.ShouldBindQuery(request); err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "malformed query")
	}
	return s.apiv1.GetAuthorizationRequest(ctx, request)
}

func (s *Service) endpointHealth(ctx context.Context, _ *gin.Context) (any, error) {
	return s.apiv1.Health(ctx)
}
