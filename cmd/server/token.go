package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkeye/huddle/internal/auth"
	"github.com/dkeye/huddle/internal/config"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/dkeye/huddle/internal/store"
)

type identityWriter interface {
	PutIdentity(ctx context.Context, id domain.Identity) error
}

func newTokenCmd() *cobra.Command {
	var (
		id       string
		name     string
		register bool
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for an identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			identity, err := domain.NewIdentity(id, name)
			if err != nil {
				return err
			}
			if register {
				if err := registerIdentity(cmd.Context(), cfg, identity); err != nil {
					return err
				}
			}
			tok, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil).Issue(identity)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "identity id (token subject)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&register, "register", false, "store the identity as an active user")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func registerIdentity(ctx context.Context, cfg *config.Config, identity domain.Identity) error {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close(ctx)
	w, ok := st.(identityWriter)
	if !ok {
		return errors.New("store driver " + cfg.Store.Driver + " does not persist identities")
	}
	identity.IsActive = true
	return w.PutIdentity(ctx, identity)
}
