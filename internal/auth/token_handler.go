package auth

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// HandleToken handles the RFC 6749 token endpoint
// @Summary Token Endpoint
// @Description Obtain tokens with the password, refresh_token or client_credentials grant
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "Grant type: password, refresh_token or client_credentials"
// @Param client_id formData string true "Client ID"
// @Param client_secret formData string false "Client Secret"
// @Param username formData string false "Username (password grant)"
// @Param password formData string false "Password (password grant)"
// @Param refresh_token formData string false "Refresh token (refresh_token grant)"
// @Param scope formData string false "Requested scope"
// @Success 200 {object} TokenPair
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/oauth/token [post]
func (o *OAuthService) HandleToken(c *gin.Context) {
	// The server writes both the token and the RFC 6749 error body.
	if err := o.server.HandleTokenRequest(c.Writer, c.Request); err != nil {
		log.WithError(err).WithField("grant_type", c.PostForm("grant_type")).Error("Failed to write token response")
	}
}
