package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/franciscosanchezn/gin-recipe-api/internal/app"
	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/models"
	"github.com/franciscosanchezn/gin-recipe-api/internal/repository"
	"github.com/franciscosanchezn/gin-recipe-api/internal/services"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	adminUsername string
	adminPassword string
	adminEmail    string

	clientName   string
	clientOwner  string
	clientGrants string
	clientScopes string

	catalogueFile string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := database.InitDatabase(conf.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)
		if err := database.Migrate(db); err != nil {
			return err
		}
		log.Info("Database schema is up to date")
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a superuser account",
	Long: `Create a superuser. The password can also be passed in ADMIN_PASSWORD.

Examples:
  recipes create-admin --username admin --password 's3cret-pass'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminPassword
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}
		if adminUsername == "" || password == "" {
			return errors.New("--username and --password (or ADMIN_PASSWORD) are required")
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			in := services.UserCreateInput{Username: adminUsername, Password: password, IsSuperuser: true}
			if adminEmail != "" {
				in.Email = &adminEmail
			}
			user, err := a.Services.Users.CreateUser(ctx, services.SystemContext(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Superuser %s created (id %s)\n", user.Username, user.ID)
			return nil
		})
	},
}

var createClientCmd = &cobra.Command{
	Use:   "create-client",
	Short: "Register an OAuth2 client acting as an existing user",
	Long: `Register an OAuth2 client. The plain secret is printed once.

Examples:
  recipes create-client --name importer --owner admin --grants client_credentials`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if clientName == "" || clientOwner == "" {
			return errors.New("--name and --owner are required")
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			owner, err := repository.NewUserRepository(a.DB).FindByUsername(ctx, clientOwner)
			if err != nil {
				return fmt.Errorf("find owner %q: %w", clientOwner, err)
			}
			creds, err := a.Services.Clients.CreateClient(ctx, models.NewUserContext(owner), services.ClientInput{
				Name:       clientName,
				Scopes:     clientScopes,
				GrantTypes: clientGrants,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Client ID:     %s\n", creds.ID)
			fmt.Fprintf(os.Stdout, "Client Secret: %s\n", creds.ClientSecret)
			fmt.Fprintf(os.Stdout, "Grant types:   %s\n", creds.GrantTypes)
			return nil
		})
	},
}

var syncPermissionsCmd = &cobra.Command{
	Use:   "sync-permissions",
	Short: "Upsert the permission catalogue and grant catalogue roles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalogue, err := database.LoadCatalogueFile(catalogueFile)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			report, err := a.Services.Permissions.SyncCatalogue(ctx, services.SystemContext(), catalogue)
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

var reconcileFilesCmd = &cobra.Command{
	Use:   "reconcile-files",
	Short: "Run one file reconciliation pass",
	Long: `Delete stored objects whose file record has been unassociated for longer
than reconcile.grace_period, and objects of soft-deleted records.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			report, err := a.Reconciler.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(report)
		})
	},
}

func init() {
	createAdminCmd.Flags().StringVarP(&adminUsername, "username", "u", "", "Username")
	createAdminCmd.Flags().StringVarP(&adminPassword, "password", "p", "", "Password")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Email")

	createClientCmd.Flags().StringVar(&clientName, "name", "", "Client name")
	createClientCmd.Flags().StringVar(&clientOwner, "owner", "", "Username the client acts as")
	createClientCmd.Flags().StringVar(&clientGrants, "grants", "client_credentials", "Space or comma separated grant types")
	createClientCmd.Flags().StringVar(&clientScopes, "scopes", "", "Space separated scopes")

	syncPermissionsCmd.Flags().StringVarP(&catalogueFile, "file", "f", "", "Catalogue YAML file (default: built-in catalogue)")
}

// withApp builds the application container for a one-off command.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, conf)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
