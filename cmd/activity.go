/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jjudge-oj/todolist/internal/mq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// activityCmd groups commands for the activity channel.
var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Inspect activity events",
}

var activityTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print activity events as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("activity publishing is disabled; set MQ_BACKEND")
		}
		defer queue.Close()

		log.Info("tailing activity", zap.String("channel", queue.Channel()))
		out := cmd.OutOrStdout()
		err = queue.Subscribe(ctx, func(_ context.Context, msg mq.Message) error {
			_, err := fmt.Fprintf(out, "%s\t%s\n", msg.Attributes[mq.AttrType], msg.Data)
			return err
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.AddCommand(activityTailCmd)
}
