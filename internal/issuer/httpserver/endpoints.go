package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"dtw/internal/issuer/apiv1"
	"dtw/pkg/vcerror"
)

func (s *Service) endpointGenerate(ctx context.Context, c *gin.Context) (any, error) {
	request := &apiv1.GenerateRequest{}
	if err := c.ShouldBindJSON(request); err != nil {
		return nil, vcerror.New(vcerror.ErrCredInvalidCredentialRequest, "malformed request body")
	}
	return s.apiv1.Generate(ctx, request)
}

func (s *Service) endpointQuery(ctx context.Context, c *gin.Context) (any, error) {
	request := &apiv1.QueryRequest{}
	if err := c.ShouldBindQuery(request); err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "malformed query")
	}
	return s.apiv1.Query(ctx, request)
}

func (s *Service) endpointRevoke(ctx context.Context, c *gin.Context) (any, error) {
	request, err := bindChangeState(c)
	if err != nil {
		return nil, err
	}
	return s.apiv1.Revoke(ctx, request)
}

func (s *Service) endpointSuspend(ctx context.Context, c *gin.Context) (any, error) {
	request, err := bindChangeState(c)
	if err != nil {
		return nil, err
	}
	return s.apiv1.Suspend(ctx, request)
}

func (s *Service) endpointRecover(ctx context.Context, c *gin.Context) (any, error) {
	request, err := bindChangeState(c)
	if err != nil {
		return nil, err
	}
	return s.apiv1.Recover(ctx, request)
}

func bindChangeState(c *gin.Context) (*apiv1.ChangeStateRequest, error) {
	request := &apiv1.ChangeStateRequest{}
	if err := c.ShouldBindQuery(request); err != nil {
		return nil, vcerror.New(vcerror.ErrIllegalArgument, "malformed query")
	}
	return request, nil
}

func (s *Service) endpointDIDDocument(ctx context.Context, _ *gin.Context) (any, error) {
	return s.apiv1.DIDDocument(ctx)
}

func (s *Service) endpointJWKS(ctx context.Context, _ *gin.Context) (any, error) {
	return s.apiv1.JWKS(ctx)
}

func (s *Service) endpointHealth(ctx context.Context, _ *gin.Context) (any, error) {
	return s.apiv1.Health(ctx)
}

// endpointStatusList serves the signed token for one status list as a raw
// JWT body.
func (s *Service) endpointStatusList(c *gin.Context) {
	token, err := s.apiv1.StatusList(c.Request.Context(), &apiv1.StatusListRequest{ListID: c.Param("id")})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/statuslist+jwt", []byte(token))
}

// endpointExport streams the credential register as a spreadsheet download.
func (s *Service) endpointExport(c *gin.Context) {
	reply, err := s.apiv1.Export(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reply.Filename))
	c.Data(http.StatusOK, reply.ContentType, reply.Data)
}
