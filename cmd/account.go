/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"time"

	"github.com/adb-analytics/apiserver/internal/validation"
	"github.com/spf13/cobra"
)

var (
	accountUsername string
	accountEmail    string
	accountPassword string
	resetToken      string
	resetConfirm    string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := validation.ValidateRegistration(validation.RegistrationInput{
			Username: accountUsername,
			Email:    accountEmail,
			Password: accountPassword,
		})
		if err != nil {
			return err
		}
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.session.Register(cmd.Context(), in); err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered and logged in as %s\n", in.Email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := validation.ValidateLogin(validation.LoginInput{Email: accountEmail, Password: accountPassword})
		if err != nil {
			return err
		}
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.session.Login(cmd.Context(), in); err != nil {
			return explain(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", in.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.session.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		state := env.session.State()
		if !state.Authenticated {
			return errNotLoggedIn
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s), session expires %s\n",
			state.User.Email, state.User.ID, state.ExpiresAt.Local().Format(time.RFC1123))
		return nil
	},
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Forgotten password flow",
}

var passwordForgotCmd = &cobra.Command{
	Use:   "forgot",
	Short: "Email a password reset link",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := validation.ValidateForgotPassword(validation.ForgotPasswordInput{Email: accountEmail})
		if err != nil {
			return err
		}
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.api.ForgotPassword(cmd.Context(), in); err != nil {
			return explain(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "if that email is registered, a reset link is on its way")
		return nil
	},
}

var passwordResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Set a new password with a reset token",
	RunE: func(cmd *cobra.Command, args []string) error {
		form, err := validation.ValidateResetPasswordForm(validation.ResetPasswordForm{
			Password:        accountPassword,
			ConfirmPassword: resetConfirm,
		})
		if err != nil {
			return err
		}
		in, err := validation.ValidateResetPassword(validation.ResetPasswordInput{Token: resetToken, Password: form.Password})
		if err != nil {
			return err
		}
		env, err := newClientEnv()
		if err != nil {
			return err
		}
		if err := env.api.ResetPassword(cmd.Context(), in); err != nil {
			return explain(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "password updated, log in with the new password")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd, loginCmd, logoutCmd, whoamiCmd, passwordCmd)
	passwordCmd.AddCommand(passwordForgotCmd, passwordResetCmd)

	registerCmd.Flags().StringVar(&accountUsername, "username", "", "display name")
	for _, c := range []*cobra.Command{registerCmd, loginCmd, passwordForgotCmd} {
		c.Flags().StringVar(&accountEmail, "email", "", "account email")
	}
	for _, c := range []*cobra.Command{registerCmd, loginCmd, passwordResetCmd} {
		c.Flags().StringVar(&accountPassword, "password", "", "account password")
	}
	passwordResetCmd.Flags().StringVar(&resetToken, "token", "", "token from the reset email")
	passwordResetCmd.Flags().StringVar(&resetConfirm, "confirm", "", "repeat the new password")
}
