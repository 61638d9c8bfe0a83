package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	referralapp "github.com/KRDOldAccount/UnitFiveProject/internal/application/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/shared"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/config"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, log = logger.WithRequestID(ctx, log, uuid.NewString())

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize", zap.Error(err))
	}

	result, err := run(ctx, a.service, args[0], args[1:])

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a.close(shutdownCtx)
	cancel()

	if err != nil {
		log.Error("Command failed", zap.String("command", args[0]), zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(exitCode(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Error("Failed to write result", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *referralapp.ReferralService, command string, args []string) (any, error) {
	switch command {
	case "add":
		if len(args) < 1 {
			return nil, usageError("add <customer> [referrer]")
		}
		req := referralapp.AddReferralRequest{CustomerID: args[0]}
		if len(args) > 1 {
			req.ReferrerID = args[1]
		}
		return svc.AddReferral(ctx, req)

	case "referrals":
		if len(args) < 1 {
			return nil, usageError("referrals <customer>")
		}
		return svc.GetDirectReferrals(ctx, args[0])

	case "tiers":
		if len(args) < 1 {
			return nil, usageError("tiers <customer>")
		}
		return svc.GetReferralSummary(ctx, args[0])

	case "leaderboard":
		return svc.GetLeaderboardView(ctx)

	default:
		printUsage()
		return nil, usageError("unknown command " + command)
	}
}

func usageError(msg string) error {
	return shared.NewDomainError("INVALID_INPUT", "usage: referral "+msg)
}

// exitCode maps domain errors to distinct exit statuses for scripting
func exitCode(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		return 2
	case errors.Is(err, shared.ErrAlreadyExists):
		return 3
	case errors.Is(err, shared.ErrTimeout):
		return 4
	default:
		return 1
	}
}

func printUsage() {
	fmt.Println(`Referral Service CLI

Usage:
  referral <command> [arguments]

Commands:
  add <customer> [referrer]  Record a customer, optionally referred by an existing customer
  referrals <customer>       List a customer's direct referrals
  tiers <customer>           Show referral counts three levels deep and the earned bonus
  leaderboard                Show the customers with the most direct referrals

Configuration is read from config.toml and REFERRAL_* environment variables.`)
}
