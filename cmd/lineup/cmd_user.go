/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/friendsincode/lineup/internal/auth"
	"github.com/friendsincode/lineup/internal/db"
	"github.com/friendsincode/lineup/internal/models"
	"github.com/friendsincode/lineup/internal/store"
)

var (
	userEmail    string
	userPassword string
	userRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Example: `  lineup user create --email orga@example.com --password s3cret --role organizer
  lineup user create --email guest@example.com --password s3cret`,
	RunE: runUserCreate,
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "Login email (required)")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "Password (required)")
	userCreateCmd.Flags().StringVar(&userRole, "role", string(models.RoleViewer), "organizer, reviewer or viewer")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userCreateCmd)
	rootCmd.AddCommand(userCmd)
}

func parseRole(s string) (models.RoleName, error) {
	switch role := models.RoleName(strings.ToLower(strings.TrimSpace(s))); role {
	case models.RoleOrganizer, models.RoleReviewer, models.RoleViewer:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	role, err := parseRole(userRole)
	if err != nil {
		return err
	}
	if len(userPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := auth.HashPassword(userPassword)
	if err != nil {
		return err
	}

	database, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close(database)

	user, err := store.New(database, logger).CreateUser(cmd.Context(), strings.TrimSpace(userEmail), hash, role)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}
