// cmd/user.go
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/davem/wrenchd/internal/auth"
	"github.com/davem/wrenchd/internal/db"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long:  `Commands for managing login accounts.`,
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Create a new user with the specified email and role. The password is
prompted for when --password is not given.

Examples:
  # Create a workshop admin
  wrenchd user create --email jefe@taller.mx --role admin

  # Create a customer account non-interactively
  wrenchd user create --email ana@taller.mx --password secret123`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		roleStr, _ := cmd.Flags().GetString("role")
		dbPath, _ := cmd.Flags().GetString("db")

		if email == "" {
			return fmt.Errorf("--email is required")
		}
		role, err := auth.ParseRole(roleStr)
		if err != nil {
			return err
		}

		if password == "" {
			password, err = promptPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}
		}

		// Check if database exists
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database not found at %s. Run 'wrenchd init' first", dbPath)
		}

		database, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		service := auth.NewService(database, "not-needed-for-create")
		user, err := service.CreateUser(email, password, name, role)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Printf("Created %s user: %s (ID: %s)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath, _ := cmd.Flags().GetString("db")

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database not found at %s. Run 'wrenchd init' first", dbPath)
		}

		database, err := db.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		service := auth.NewService(database, "not-needed-for-list")
		users, err := service.ListUsers()
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		if len(users) == 0 {
			fmt.Println("No users found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				u.ID, u.Email, u.Name, u.Role, u.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var stdinReader *bufio.Reader

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	// Fallback for piped input. Reuse the reader so buffered data survives
	// across prompts.
	if stdinReader == nil {
		stdinReader = bufio.NewReader(os.Stdin)
	}
	line, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)

	userCmd.PersistentFlags().String("db", "wrenchd.db", "Path to database file")

	userCreateCmd.Flags().String("email", "", "User email (required)")
	userCreateCmd.Flags().String("password", "", "User password (prompted when omitted)")
	userCreateCmd.Flags().String("name", "", "Display name")
	userCreateCmd.Flags().String("role", "user", "Role: user, operator, admin or superAdmin")
}
