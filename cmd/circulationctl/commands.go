package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kevinaaaquil/circulation/app"
	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/config"
	"github.com/kevinaaaquil/circulation/identity"
	"github.com/kevinaaaquil/circulation/secret"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "circulationctl",
		Short:         "Maintenance tasks for the circulation desk",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd(), newTokenCmd(), newSealCmd())
	return root
}

// session is an open store plus the engine over it.
type session struct {
	cfg    *config.Config
	store  circulation.Store
	engine *circulation.Engine
	close  func()
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s, closeFn, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, store: s, engine: app.NewEngine(cfg, s, logger), close: closeFn}, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, collections and indexes, and the bootstrap admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close()
			created, err := sess.engine.EnsureBootstrapAdmin(ctx, sess.cfg.AuthEmail, sess.cfg.AuthPass, sess.cfg.AuthBranch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", sess.cfg.StoreDriver)
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s\n", sess.cfg.AuthEmail)
			}
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <books.csv>",
		Short: "Add titles from a CSV of title,author,isbn,copies,branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			books, err := readBooks(f)
			if err != nil {
				return err
			}

			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close()
			if _, err := sess.engine.EnsureBootstrapAdmin(ctx, sess.cfg.AuthEmail, sess.cfg.AuthPass, sess.cfg.AuthBranch); err != nil {
				return err
			}
			admin, err := sess.engine.Authenticate(ctx, sess.cfg.AuthEmail, sess.cfg.AuthPass)
			if err != nil {
				return fmt.Errorf("bootstrap admin: %w", err)
			}
			for _, nb := range books {
				book, err := sess.engine.AddBook(ctx, admin.Actor(), nb)
				if err != nil {
					return fmt.Errorf("%q: %w", nb.Title, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", book.ID, book.TotalCopies, book.Title)
			}
			return nil
		},
	}
}

// readBooks parses seed rows. A first row starting with "title" is a header.
func readBooks(r io.Reader) ([]circulation.NewBook, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && len(records[0]) > 0 && strings.EqualFold(records[0][0], "title") {
		records = records[1:]
	}
	books := make([]circulation.NewBook, 0, len(records))
	for i, rec := range records {
		if len(rec) < 4 {
			return nil, fmt.Errorf("line %d: want title,author,isbn,copies[,branch]", i+1)
		}
		copies, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil {
			return nil, fmt.Errorf("line %d: copies: %w", i+1, err)
		}
		nb := circulation.NewBook{
			Title:       strings.TrimSpace(rec[0]),
			Author:      strings.TrimSpace(rec[1]),
			ISBN:        strings.TrimSpace(rec[2]),
			TotalCopies: copies,
		}
		if len(rec) > 4 {
			nb.BranchID = strings.TrimSpace(rec[4])
		}
		books = append(books, nb)
	}
	return books, nil
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <email>",
		Short: "Print a bearer token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.close()
			user, err := sess.store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(args[0])))
			if err != nil {
				return err
			}
			if !user.IsActive {
				return fmt.Errorf("user %s is inactive", user.Email)
			}
			token, err := identity.NewJWTOracle(sess.cfg.JWTSecret, sess.store).Issue(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func newSealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seal",
		Short: "Encrypt a secret such as SMTP_PASSWORD with SECRET_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := secret.DecodeKey(os.Getenv("SECRET_KEY"))
			if err != nil {
				return fmt.Errorf("SECRET_KEY: %w", err)
			}
			plain, err := readSecret(cmd)
			if err != nil {
				return err
			}
			if plain == "" {
				return errors.New("empty secret")
			}
			sealed, err := secret.Seal(plain, key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}

// readSecret prompts without echo on a terminal and reads one line otherwise.
func readSecret(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Secret: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
