package controllers

import (
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	"github.com/gin-gonic/gin"
)

type ClientController struct {
	clientService services.ClientService
}

func NewClientController(clientService services.ClientService) *ClientController {
	return &ClientController{clientService: clientService}
}

// CreateClient godoc
// @Summary Create OAuth2 client
// @Description Create a new OAuth2 client acting as the authenticated user. The secret is returned only here.
// @Tags OAuth2 Clients
// @Accept json
// @Produce json
// @Param client body services.ClientInput true "Client details"
// @Success 201 {object} models.Response{data=services.ClientCredentials}
// @Failure 400 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/clients [post]
func (cc *ClientController) CreateClient(c *gin.Context) {
	var in services.ClientInput
	if err := bindJSON(c, &in); err != nil {
		fail(c, err)
		return
	}
	creds, err := cc.clientService.CreateClient(c.Request.Context(), user(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, creds)
}

// ListClients godoc
// @Summary List OAuth2 clients
// @Description Clients owned by the authenticated user; a superuser sees all of them
// @Tags OAuth2 Clients
// @Produce json
// @Success 200 {object} models.Response{data=[]models.OAuthClient}
// @Security BearerAuth
// @Router /api/v1/clients [get]
func (cc *ClientController) ListClients(c *gin.Context) {
	clients, err := cc.clientService.ListClients(c.Request.Context(), user(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, clients)
}

// GetClient godoc
// @Summary Get OAuth2 client
// @Tags OAuth2 Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} models.Response{data=models.OAuthClient}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/clients/{id} [get]
func (cc *ClientController) GetClient(c *gin.Context) {
	client, err := cc.clientService.GetClient(c.Request.Context(), user(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, client)
}

// DeleteClient godoc
// @Summary Delete OAuth2 client
// @Description Delete an OAuth2 client owned by the authenticated user. Its tokens are removed too.
// @Tags OAuth2 Clients
// @Produce json
// @Param id path string true "Client ID"
// @Success 200 {object} models.Response
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /api/v1/clients/{id} [delete]
func (cc *ClientController) DeleteClient(c *gin.Context) {
	if err := cc.clientService.DeleteClient(c.Request.Context(), user(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}
