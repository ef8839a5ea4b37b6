package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"etracker/internal/api"
)

var (
	flagEmail    string
	flagPassword string
)

func init() {
	for _, cmd := range []*cobra.Command{loginCmd, registerCmd} {
		cmd.Flags().StringVar(&flagEmail, "email", "", "account email")
		cmd.Flags().StringVar(&flagPassword, "password", "", "account password (prompted when omitted)")
	}
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, statusCmd)
}

func readCredentials() (api.Credentials, error) {
	reader := bufio.NewReader(os.Stdin)

	email := flagEmail
	if email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return api.Credentials{}, fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	password := flagPassword
	if password == "" {
		fmt.Print("Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return api.Credentials{}, fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	return api.Credentials{Email: email, Password: password}, nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session for later commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		creds, err := readCredentials()
		if err != nil {
			return err
		}
		if err := a.gate.Login(cmd.Context(), creds); err != nil {
			return remoteFailure("login failed", err)
		}
		if !a.gate.Authenticated() {
			return fmt.Errorf("login did not establish a session")
		}
		fmt.Println("Logged in.")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		creds, err := readCredentials()
		if err != nil {
			return err
		}
		if err := a.gate.Register(cmd.Context(), creds); err != nil {
			return remoteFailure("register failed", err)
		}
		fmt.Println("Registered. Now log in.")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out (always ends the local session, even offline)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		a.board.Logout(cmd.Context())
		fmt.Println("Logged out.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the stored session is still valid",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if a.gate.Check(cmd.Context()) {
			fmt.Println("Authenticated.")
		} else {
			fmt.Println("Anonymous.")
		}
		return nil
	},
}
