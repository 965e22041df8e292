package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cardadmin/service/bankapi"
	"cardadmin/service/cardaction"
	"cardadmin/service/config"
	"cardadmin/service/delivery"
	"cardadmin/service/expiry"
	"cardadmin/service/request"
	"cardadmin/service/server"
	"cardadmin/service/util"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

func init() {
	_ = godotenv.Load() //nolint:errcheck // .env is optional
}

var rootCmd = &cobra.Command{
	Use:           "cardadmin",
	Short:         "Bank card admin console: act on card requests from notifications",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cardadmin %s (%s)\n", version, commit)
	},
}

var expiryOptionsCmd = &cobra.Command{
	Use:   "expiry-options",
	Short: "Print the card expiry dates a user may choose from",
	Run: func(cmd *cobra.Command, args []string) {
		for _, o := range expiry.Options(time.Now()) {
			fmt.Fprintln(cmd.OutOrStdout(), o.Value)
		}
	},
}

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "File a card request with the bank on behalf of a user",
}

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Act on a card directly as an administrator",
}

var (
	reasonFlag, customReasonFlag string
	ownerFlag                    string
	yesFlag                      bool
)

func init() {
	topUp := &cobra.Command{
		Use:   "topup <card-id> <amount>",
		Short: "Request a top-up",
		Args:  cobra.ExactArgs(2),
		RunE: withCard(func(ctx context.Context, s *request.Service, cardID int64, args []string) (request.Result, error) {
			return s.TopUp(ctx, cardID, args[1])
		}),
	}

	block := &cobra.Command{
		Use:   "block <card-id>",
		Short: "Request a block",
		Args:  cobra.ExactArgs(1),
		RunE: withCard(func(ctx context.Context, s *request.Service, cardID int64, args []string) (request.Result, error) {
			return s.Block(ctx, cardID, reasonFlag, customReasonFlag)
		}),
	}

	unblock := &cobra.Command{
		Use:   "unblock <card-id>",
		Short: "Request an unblock",
		Args:  cobra.ExactArgs(1),
		RunE: withCard(func(ctx context.Context, s *request.Service, cardID int64, args []string) (request.Result, error) {
			return s.Unblock(ctx, cardID, reasonFlag, customReasonFlag)
		}),
	}

	for _, c := range []*cobra.Command{block, unblock} {
		c.Flags().StringVar(&reasonFlag, "reason", "", "predefined reason, or \""+request.OtherReason+"\"")
		c.Flags().StringVar(&customReasonFlag, "custom-reason", "", "free-text reason when --reason is \""+request.OtherReason+"\"")
	}

	recreate := &cobra.Command{
		Use:   "recreate <card-id> <MM/YY>",
		Short: "Request a replacement card",
		Args:  cobra.ExactArgs(2),
		RunE: withCard(func(ctx context.Context, s *request.Service, cardID int64, args []string) (request.Result, error) {
			return s.Recreate(ctx, cardID, args[1])
		}),
	}

	create := &cobra.Command{
		Use:   "create <MM/YY>",
		Short: "Request a new card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newRequestService()
			if err != nil {
				return err
			}
			res, err := s.Create(cmd.Context(), args[0])
			return printResult(cmd, res, err)
		},
	}

	requestCmd.AddCommand(topUp, block, unblock, recreate, create)

	cardActivate := &cobra.Command{
		Use:   "activate <card-id>",
		Short: "Activate a card",
		Args:  cobra.ExactArgs(1),
		RunE: withAction(cardaction.ActionActivate, func(args []string) cardaction.Params {
			return cardaction.Params{Reason: reasonFlag}
		}),
	}
	cardActivate.Flags().StringVar(&reasonFlag, "reason", "", "reason sent to the bank")

	cardBlock := &cobra.Command{
		Use:   "block <card-id>",
		Short: "Block a card",
		Args:  cobra.ExactArgs(1),
		RunE: withAction(cardaction.ActionBlock, func(args []string) cardaction.Params {
			return cardaction.Params{Reason: reasonFlag}
		}),
	}
	cardBlock.Flags().StringVar(&reasonFlag, "reason", "", "reason sent to the bank (required)")

	cardTopUp := &cobra.Command{
		Use:   "topup <card-id> <amount>",
		Short: "Top up a card",
		Args:  cobra.ExactArgs(2),
		RunE: withAction(cardaction.ActionTopUp, func(args []string) cardaction.Params {
			return cardaction.Params{Amount: args[1]}
		}),
	}

	cardRecreate := &cobra.Command{
		Use:   "recreate <card-id> <MM/YY>",
		Short: "Issue a replacement card and delete the old one",
		Args:  cobra.ExactArgs(2),
		RunE: withAction(cardaction.ActionRecreate, func(args []string) cardaction.Params {
			return cardaction.Params{ExpiryDate: args[1], OwnerEmail: ownerFlag}
		}),
	}
	cardRecreate.Flags().StringVar(&ownerFlag, "owner", "", "owner e-mail; looked up from the bank when empty")

	cardDelete := &cobra.Command{
		Use:   "delete <card-id>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: withAction(cardaction.ActionDelete, func(args []string) cardaction.Params {
			return cardaction.Params{}
		}),
	}

	cardCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "skip the confirmation prompt")
	cardCmd.AddCommand(cardActivate, cardBlock, cardTopUp, cardRecreate, cardDelete)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(expiryOptionsCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(cardCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger := util.NewLogger(false)
		logger.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := util.NewLogger(cfg.VerboseLogging)
	logger.Info("Starting cardadmin", "version", version)

	srv, err := server.New(cfg, version, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}

// withAction shows the confirmation prompt and runs the action once the
// operator agrees.
func withAction(action cardaction.Action, params func(args []string) cardaction.Params) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cardID, err := parseCardID(args[0])
		if err != nil {
			return err
		}

		cfg, err := config.LoadClient()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger := util.NewLogger(cfg.VerboseLogging)
		bank := bankapi.NewClient(cfg.BankAPIURL, cfg.BankAPIToken, cfg.RequestTimeout, logger)
		s := cardaction.NewService(bank, printer{cmd.ErrOrStderr()}, logger, cfg.RequestTimeout)

		p := params(args)
		prompt, err := s.Prompt(cardID, action, p)
		if err != nil {
			return err
		}
		if !yesFlag {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s [y/N]: ", prompt.Title, prompt.Message)
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" && a != "д" && a != "да" {
				fmt.Fprintln(cmd.OutOrStdout(), prompt.CancelLabel)
				return nil
			}
		}

		res, err := s.Run(cmd.Context(), cardID, action, p)
		if err != nil {
			return err
		}
		if res.Partial != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", res.Partial)
		}
		return nil
	}
}

// printer writes outcome toasts to the terminal.
type printer struct {
	w io.Writer
}

func (p printer) Notify(toast delivery.Toast) {
	fmt.Fprintf(p.w, "%s: %s\n", toast.Title, toast.Message)
}

func parseCardID(raw string) (int64, error) {
	cardID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || cardID <= 0 {
		return 0, fmt.Errorf("invalid card id %q", raw)
	}
	return cardID, nil
}

type cardRequest func(ctx context.Context, s *request.Service, cardID int64, args []string) (request.Result, error)

func withCard(fn cardRequest) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cardID, err := parseCardID(args[0])
		if err != nil {
			return err
		}

		s, err := newRequestService()
		if err != nil {
			return err
		}
		res, err := fn(cmd.Context(), s, cardID, args)
		return printResult(cmd, res, err)
	}
}

func newRequestService() (*request.Service, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := util.NewLogger(cfg.VerboseLogging)
	bank := bankapi.NewClient(cfg.BankAPIURL, cfg.BankAPIToken, cfg.RequestTimeout, logger)
	return request.NewService(bank, logger, cfg.ConfirmTTL), nil
}

func printResult(cmd *cobra.Command, res request.Result, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	return nil
}
