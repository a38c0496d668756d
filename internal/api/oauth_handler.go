package api

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hiboutik/oauth-client/internal/auth/hiboutik"
	"github.com/hiboutik/oauth-client/internal/logging"
)

// handleOAuth runs one pass of the authorization flow. Pages are rendered
// into a buffer first so the status code can follow the outcome. Clients
// asking for JSON, and any request whose page failed to render, get the
// FlowResult itself.
func (s *Server) handleOAuth(c *gin.Context) {
	st := s.state.Load()
	ctx := c.Request.Context()
	entry := logging.Entry(ctx).WithField("provider", "hiboutik")

	client, err := s.NewClient(entry)
	if err != nil {
		entry.WithError(err).Error("cannot build oauth client")
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": hiboutik.UserFriendlyMessage(err)})
		return
	}

	wantJSON := c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
	var page bytes.Buffer
	var renderErr error
	if !wantJSON {
		client.SetInstallRenderer(recordRenderError(hiboutik.NewTemplateRenderer(st.install, &page), &renderErr))
		client.SetResultRenderer(recordRenderError(hiboutik.NewTemplateRenderer(st.result, &page), &renderErr))
	}

	result, err := client.Run(ctx, hiboutik.CallbackParamsFromQuery(c.Request.URL.Query()))
	status := result.HTTPStatus()
	if err != nil {
		_ = c.Error(err)
		status = http.StatusBadGateway
	}

	if token := client.ShowToken(); token != nil && s.onToken != nil {
		s.onToken(ctx, token)
	}

	if renderErr != nil {
		// A partially executed template is never served. The result still
		// goes out as JSON so a fresh token is not lost.
		_ = c.Error(renderErr)
		page.Reset()
		if err == nil {
			status = http.StatusInternalServerError
		}
	}

	c.Header("Cache-Control", "no-store")
	if wantJSON || page.Len() == 0 {
		c.JSON(status, result)
		return
	}
	c.Data(status, "text/html; charset=utf-8", page.Bytes())
}

func recordRenderError(r hiboutik.Renderer, dst *error) hiboutik.Renderer {
	return hiboutik.RendererFunc(func(result *hiboutik.FlowResult, c *hiboutik.Client) error {
		err := r.Render(result, c)
		if err != nil {
			*dst = err
		}
		return err
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	logging.SkipGinRequestLogging(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
