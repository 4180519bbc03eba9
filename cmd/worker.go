/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adb-analytics/apiserver/config"
	"github.com/adb-analytics/apiserver/internal/mq"
	"github.com/adb-analytics/apiserver/internal/notify"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Delivers queued emails",
	Long: `Consumes the email channel of the configured message queue and
delivers each message through SMTP. Requires MQ_BACKEND.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open mq: %v\n", err)
			os.Exit(1)
		}
		if queue == nil || cfg.MQ.Backend == "memory" {
			fmt.Fprintln(os.Stderr, "worker requires MQ_BACKEND=rabbitmq or pubsub")
			os.Exit(1)
		}
		defer queue.Close()

		log.Printf("worker: consuming %s", cfg.MQ.Channel)
		err = queue.Subscribe(ctx, cfg.MQ.Channel, notify.Handler(notify.NewMailer(cfg.SMTP)))
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
			os.Exit(1)
		}
		log.Printf("worker: stopped")
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
