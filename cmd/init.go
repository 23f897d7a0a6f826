// cmd/init.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new wrenchd database",
	Long: `Creates a new SQLite database with the shop schema. With --email a
first superAdmin account is created, prompting for a password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")
		email, _ := cmd.Flags().GetString("email")

		// Check if file already exists
		if _, err := os.Stat(dbPath); err == nil {
			return fmt.Errorf("database already exists at %s", dbPath)
		}

		database, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer database.Close()

		if err := database.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		if email != "" {
			password, err := promptPassword("Password for " + email + ": ")
			if err != nil {
				return err
			}
			service := auth.NewService(database, "not-needed-for-create")
			user, err := service.CreateUser(email, password, "", auth.RoleSuperAdmin)
			if err != nil {
				return fmt.Errorf("failed to create super admin: %w", err)
			}
			fmt.Printf("Initialized database at %s with super admin %s\n", dbPath, user.Email)
			return nil
		}

		fmt.Printf("Initialized database at %s\n", dbPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("db", "wrenchd.db", "Path to database file")
	initCmd.Flags().String("email", "", "Create a superAdmin account with this email")
}
