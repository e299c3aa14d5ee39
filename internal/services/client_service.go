package services

import (
	"context"
	"strings"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type ClientInput struct {
	Name       string `json:"name" binding:"required,max=128"`
	Domain     string `json:"domain" binding:"omitempty,max=255"`
	Scopes     string `json:"scopes"`
	GrantTypes string `json:"grant_types"`
}

// ClientCredentials carries the plain secret, returned only once at creation.
type ClientCredentials struct {
	*models.OAuthClient
	ClientSecret string `json:"client_secret"`
}

var allowedGrants = map[string]struct{}{
	"password":           {},
	"refresh_token":      {},
	"client_credentials": {},
}

// ClientService manages OAuth2 clients. A client acts as the user who created it.
type ClientService interface {
	CreateClient(ctx context.Context, uc *models.UserContext, in ClientInput) (*ClientCredentials, error)
	ListClients(ctx context.Context, uc *models.UserContext) ([]models.OAuthClient, error)
	GetClient(ctx context.Context, uc *models.UserContext, id string) (*models.OAuthClient, error)
	DeleteClient(ctx context.Context, uc *models.UserContext, id string) error
}

type clientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) ClientService {
	return &clientService{db: db}
}

func normalizeGrants(raw string) (string, error) {
	grants := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	if len(grants) == 0 {
		return "client_credentials", nil
	}
	for _, g := range grants {
		if _, ok := allowedGrants[g]; !ok {
			return "", models.NewValidationError("unsupported grant type %q", g)
		}
	}
	return strings.Join(grants, " "), nil
}

func (s *clientService) CreateClient(ctx context.Context, uc *models.UserContext, in ClientInput) (*ClientCredentials, error) {
	if uc == nil || uc.User == nil {
		return nil, models.ErrNotAuthenticated
	}
	grants, err := normalizeGrants(in.GrantTypes)
	if err != nil {
		return nil, err
	}
	secret := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	client := &models.OAuthClient{
		ID:         uuid.NewString(),
		Secret:     string(hash),
		Name:       strings.TrimSpace(in.Name),
		Domain:     in.Domain,
		UserID:     uc.ActorID(),
		Scopes:     in.Scopes,
		GrantTypes: grants,
	}
	if err := database.Conn(ctx, s.db).Create(client).Error; err != nil {
		return nil, translate(err, "oauth client", client.Name)
	}
	log.WithFields(log.Fields{"client_id": client.ID, "user_id": client.GetUserID()}).Info("OAuth2 client created")
	return &ClientCredentials{OAuthClient: client, ClientSecret: secret}, nil
}

func (s *clientService) ListClients(ctx context.Context, uc *models.UserContext) ([]models.OAuthClient, error) {
	if uc == nil || uc.User == nil {
		return nil, models.ErrNotAuthenticated
	}
	q := database.Conn(ctx, s.db).Order("created_at DESC")
	if !uc.IsSuperuser() {
		q = q.Where("user_id = ?", uc.UserID())
	}
	clients := []models.OAuthClient{}
	if err := q.Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

// owned loads a client visible to uc. Other users' clients read as missing.
func (s *clientService) owned(ctx context.Context, uc *models.UserContext, id string) (*models.OAuthClient, error) {
	if uc == nil || uc.User == nil {
		return nil, models.ErrNotAuthenticated
	}
	var client models.OAuthClient
	if err := database.Conn(ctx, s.db).Where("id = ?", id).First(&client).Error; err != nil {
		return nil, translate(err, "oauth client", id)
	}
	if !uc.IsSuperuser() && (client.UserID == nil || *client.UserID != uc.UserID()) {
		return nil, models.NewNotFoundError("oauth client", id)
	}
	return &client, nil
}

func (s *clientService) GetClient(ctx context.Context, uc *models.UserContext, id string) (*models.OAuthClient, error) {
	return s.owned(ctx, uc, id)
}

func (s *clientService) DeleteClient(ctx context.Context, uc *models.UserContext, id string) error {
	return database.Transaction(ctx, s.db, func(ctx context.Context) error {
		client, err := s.owned(ctx, uc, id)
		if err != nil {
			return err
		}
		if err := database.Conn(ctx, s.db).Where("client_id = ?", client.ID).Delete(&models.OAuthToken{}).Error; err != nil {
			return err
		}
		return database.Conn(ctx, s.db).Delete(client).Error
	})
}
