/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jjudge-oj/todolist/config"
	"github.com/jjudge-oj/todolist/internal/db"
	"github.com/jjudge-oj/todolist/internal/services"
	"github.com/jjudge-oj/todolist/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// userCmd groups account maintenance commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a user with the same rules as the web form",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		username, _ := cmd.Flags().GetString("username")
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")

		users, closeUsers, err := openUserRepository(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeUsers()

		auth := services.NewAuthService(users, nil, log)
		user, err := auth.Register(cmd.Context(), services.RegisterInput{
			Username:  username,
			Email:     email,
			Password:  password,
			Password2: password,
		})
		if err != nil {
			if messages := services.Messages(err); len(messages) > 0 {
				return errors.New(strings.Join(messages, "; "))
			}
			return err
		}

		log.Info("user created", zap.String("id", user.ID), zap.String("username", user.Username))
		fmt.Fprintln(cmd.OutOrStdout(), user.ID)
		return nil
	},
}

// openUserRepository connects the persistent user store named by STORE_BACKEND.
func openUserRepository(ctx context.Context, cfg config.Config) (services.UserRepository, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return store.NewUserRepository(conn), func() { _ = conn.Close() }, nil
	case config.BackendMongo:
		mongoDB, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		users := store.NewMongoUserRepository(mongoDB)
		closeFn := func() { _ = mongoDB.Client().Disconnect(context.Background()) }
		if err := users.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
		return users, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("store backend %q is not persistent", cfg.StoreBackend)
	}
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	userCreateCmd.Flags().String("username", "", "username (required)")
	userCreateCmd.Flags().String("email", "", "email address (required)")
	userCreateCmd.Flags().String("password", "", "password, at least 6 characters (required)")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
}
