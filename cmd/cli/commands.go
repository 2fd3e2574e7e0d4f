package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/ledgercore/internal/infrastructure/postgres"
)

var errDriftDetected = errors.New("reconciliation found drifted entities")

func newRootCmd(out io.Writer) *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
		client  *apiClient
	)

	rootCmd := &cobra.Command{
		Use:           "ledgercore-cli",
		Short:         "Ledger CLI tool",
		Long:          `A command line interface for interacting with the ledger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			client = newAPIClient(baseURL, timeout, out)
		},
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the ledger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	api := func() *apiClient { return client }

	rootCmd.AddCommand(
		newEntityCmd(api),
		newTxCmd(api),
		newBalanceCmd(api),
		newLedgerCmd(api),
		newMigrateCmd(),
	)
	return rootCmd
}

func newEntityCmd(api func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "entity", Short: "Entity operations"}

	var (
		code           string
		kind           string
		rejectNegative bool
	)
	register := &cobra.Command{
		Use:   "register",
		Short: "Register an entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"kind": kind, "reject_negative": rejectNegative}
			if code != "" {
				body["code"] = code
			}
			return api().call(cmd.Context(), http.MethodPost, "/api/v1/entities/", nil, body)
		},
	}
	register.Flags().StringVar(&code, "code", "", "Human-readable code")
	register.Flags().StringVar(&kind, "kind", "account", "Entity kind (account or item)")
	register.Flags().BoolVar(&rejectNegative, "reject-negative", false, "Refuse finalizations that take the balance below zero")

	get := &cobra.Command{
		Use:   "get REF",
		Short: "Show an entity by ID or code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return api().call(cmd.Context(), http.MethodGet, "/api/v1/entities/"+url.PathEscape(args[0]), nil, nil)
		},
	}

	var (
		newCode   string
		clearCode bool
	)
	rename := &cobra.Command{
		Use:   "rename REF",
		Short: "Change or clear an entity code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCode == (newCode != "") {
				return errors.New("exactly one of --code or --clear is required")
			}
			body := map[string]any{"code": nil}
			if !clearCode {
				body["code"] = newCode
			}
			return api().call(cmd.Context(), http.MethodPut, "/api/v1/entities/"+url.PathEscape(args[0])+"/code", nil, body)
		},
	}
	rename.Flags().StringVar(&newCode, "code", "", "New code")
	rename.Flags().BoolVar(&clearCode, "clear", false, "Remove the code")

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", fmt.Sprint(limit))
			q.Set("offset", fmt.Sprint(offset))
			return api().call(cmd.Context(), http.MethodGet, "/api/v1/entities/", q, nil)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Page size")
	list.Flags().IntVar(&offset, "offset", 0, "Page offset")

	cmd.AddCommand(register, get, rename, list)
	return cmd
}

func newTxCmd(api func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "tx", Short: "Transaction operations"}

	var entity, txType, amount, refNo string
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Record a draft transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return api().call(cmd.Context(), http.MethodPost, "/api/v1/transactions/", nil, map[string]string{
				"entity": entity,
				"type":   txType,
				"amount": amount,
				"ref_no": refNo,
			})
		},
	}
	submit.Flags().StringVar(&entity, "entity", "", "Entity ID or code")
	submit.Flags().StringVar(&txType, "type", "IN", "Direction (IN or OUT)")
	submit.Flags().StringVar(&amount, "amount", "", "Positive decimal amount")
	submit.Flags().StringVar(&refNo, "ref", "", "Unique reference number")
	_ = submit.MarkFlagRequired("entity")
	_ = submit.MarkFlagRequired("amount")
	_ = submit.MarkFlagRequired("ref")

	var amendType, amendAmount string
	amend := &cobra.Command{
		Use:   "amend ID",
		Short: "Change the type and amount of a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return api().call(cmd.Context(), http.MethodPut, "/api/v1/transactions/"+url.PathEscape(args[0]), nil, map[string]string{
				"type":   amendType,
				"amount": amendAmount,
			})
		},
	}
	amend.Flags().StringVar(&amendType, "type", "IN", "Direction (IN or OUT)")
	amend.Flags().StringVar(&amendAmount, "amount", "", "Positive decimal amount")
	_ = amend.MarkFlagRequired("amount")

	action := func(use, short, suffix, method string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " ID",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return api().call(cmd.Context(), method, "/api/v1/transactions/"+url.PathEscape(args[0])+suffix, nil, nil)
			},
		}
	}

	var from, to, transferAmount, transferRef string
	transfer := &cobra.Command{
		Use:   "transfer",
		Short: "Move value between two entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return api().call(cmd.Context(), http.MethodPost, "/api/v1/transfers", nil, map[string]string{
				"from":   from,
				"to":     to,
				"amount": transferAmount,
				"ref_no": transferRef,
			})
		},
	}
	transfer.Flags().StringVar(&from, "from", "", "Source entity ID or code")
	transfer.Flags().StringVar(&to, "to", "", "Destination entity ID or code")
	transfer.Flags().StringVar(&transferAmount, "amount", "", "Positive decimal amount")
	transfer.Flags().StringVar(&transferRef, "ref", "", "Unique reference number")
	for _, f := range []string{"from", "to", "amount", "ref"} {
		_ = transfer.MarkFlagRequired(f)
	}

	var (
		listEntity   string
		listStatuses []string
		listFrom     string
		listTo       string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List transactions as newline-delimited JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if listEntity != "" {
				q.Set("entity", listEntity)
			}
			for _, s := range listStatuses {
				q.Add("status", s)
			}
			if listFrom != "" {
				q.Set("from", listFrom)
			}
			if listTo != "" {
				q.Set("to", listTo)
			}
			c := api()
			data, err := c.do(cmd.Context(), http.MethodGet, "/api/v1/transactions/", q, nil)
			if err != nil {
				return err
			}
			_, err = c.out.Write(data)
			return err
		},
	}
	list.Flags().StringVar(&listEntity, "entity", "", "Entity ID or code")
	list.Flags().StringSliceVar(&listStatuses, "status", nil, "Statuses to include (repeatable)")
	list.Flags().StringVar(&listFrom, "from", "", "Earliest creation time (RFC 3339)")
	list.Flags().StringVar(&listTo, "to", "", "Latest creation time (RFC 3339)")

	cmd.AddCommand(
		submit,
		amend,
		action("get", "Show a transaction", "", http.MethodGet),
		action("request-approval", "Move a draft to pending", "/request-approval", http.MethodPost),
		action("approve", "Finalize a transaction", "/approve", http.MethodPost),
		action("cancel", "Cancel a draft or pending transaction", "/cancel", http.MethodPost),
		action("reverse", "Record a compensating transaction", "/reverse", http.MethodPost),
		transfer,
		list,
	)
	return cmd
}

func newBalanceCmd(api func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "balance", Short: "Balance operations"}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get REF",
			Short: "Show the balance of an entity",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return api().call(cmd.Context(), http.MethodGet, "/api/v1/entities/"+url.PathEscape(args[0])+"/balance", nil, nil)
			},
		},
		&cobra.Command{
			Use:   "rebuild REF",
			Short: "Recompute a balance from the log and repair its cache",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return api().call(cmd.Context(), http.MethodPost, "/api/v1/entities/"+url.PathEscape(args[0])+"/rebuild", nil, nil)
			},
		},
	)
	return cmd
}

func newLedgerCmd(api func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "ledger", Short: "Ledger operations"}

	cmd.AddCommand(&cobra.Command{
		Use:   "reconcile",
		Short: "Rebuild every entity and report drifted caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := api()
			data, err := c.do(cmd.Context(), http.MethodPost, "/api/v1/reconcile", nil, nil)
			if err != nil {
				return err
			}
			if err := c.print(data); err != nil {
				return err
			}

			var report struct {
				Discrepancies []json.RawMessage `json:"discrepancies"`
			}
			if err := json.Unmarshal(data, &report); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			if len(report.Discrepancies) > 0 {
				return fmt.Errorf("%w: %d", errDriftDetected, len(report.Discrepancies))
			}
			return nil
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")

	logger := func(cmd *cobra.Command) zerolog.Logger {
		return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
	}
	requireURL := func() error {
		if databaseURL == "" {
			return errors.New("--database-url or DATABASE_URL is required")
		}
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := requireURL(); err != nil {
					return err
				}
				return postgres.RunMigrations(databaseURL, logger(cmd))
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := requireURL(); err != nil {
					return err
				}
				return postgres.RunMigrationsDown(databaseURL, logger(cmd))
			},
		},
	)
	return cmd
}
