package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/jrsteele09/go-login-portal/apiclient"
	"github.com/jrsteele09/go-login-portal/auth"
	"github.com/jrsteele09/go-login-portal/guard"
	"github.com/jrsteele09/go-login-portal/internal/config"
	apperrors "github.com/jrsteele09/go-login-portal/internal/errors"
	"github.com/jrsteele09/go-login-portal/session"
	"github.com/jrsteele09/go-login-portal/storage/filestore"
	"github.com/spf13/cobra"
)

type app struct {
	out     io.Writer
	apiURL  string
	dataDir string
	slot    string
}

// cliSession is an opened slot with the operations bound to it.
type cliSession struct {
	store   *session.Store
	service *auth.Service
	close   func() error
}

func rootCmd(c config.Config, out io.Writer) *cobra.Command {
	a := &app{out: out}

	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Log in to and out of the auth API from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.apiURL, "api", c.GetAPIBaseURL(), "Auth API base URL")
	cmd.PersistentFlags().StringVar(&a.dataDir, "data", c.GetDataFolder(), "Folder holding the session slot")
	cmd.PersistentFlags().StringVar(&a.slot, "slot", c.GetStorageSlot(), "Session slot name")

	cmd.AddCommand(a.loginCmd(), a.logoutCmd(), a.statusCmd())
	return cmd
}

func (a *app) open(ctx context.Context) (*cliSession, error) {
	files, err := filestore.New(a.dataDir)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.dataDir, err)
	}
	store := session.NewStore(ctx, files, a.slot)
	api := apiclient.New(a.apiURL, store, store)
	return &cliSession{
		store:   store,
		service: auth.NewService(api, store),
		close:   files.Close,
	}, nil
}

// watch reports when the session flips, including a forced logout after a 401.
func (a *app) watch(store *session.Store) func() {
	g := &guard.Guard{OnChange: func(_, to session.Status) {
		if to == session.StatusUnauthenticated {
			fmt.Fprintln(a.out, "Session ended")
		}
	}}
	return g.Watch(store)
}

func (a *app) loginCmd() *cobra.Command {
	var creds auth.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			err = s.service.Login(cmd.Context(), creds)
			var fieldErrs auth.ValidationErrors
			var loginErr *auth.LoginError
			switch {
			case apperrors.As(err, &fieldErrs):
				fields := make([]string, 0, len(fieldErrs))
				for f := range fieldErrs {
					fields = append(fields, f)
				}
				sort.Strings(fields)
				for _, f := range fields {
					fmt.Fprintf(a.out, "%s: %s\n", f, fieldErrs[f])
				}
				return apperrors.ErrInvalidCredentials
			case apperrors.As(err, &loginErr):
				return errors.New(loginErr.Message)
			case err != nil:
				return err
			}

			fmt.Fprintln(a.out, "Logged in"+a.as(s.store))
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Account password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			stop := a.watch(s.store)
			defer stop()

			s.service.Logout(cmd.Context())
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the stored session is authenticated",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			fmt.Fprintln(a.out, s.store.Status().String()+a.as(s.store))
			return nil
		},
	}
}

// as names the signed-in user when the token carries claims.
func (a *app) as(store *session.Store) string {
	token, ok := store.AccessToken()
	if !ok {
		return ""
	}
	user, err := auth.UserFromToken(token)
	if err != nil || user.DisplayName() == "" {
		return ""
	}
	return " as " + user.DisplayName()
}
