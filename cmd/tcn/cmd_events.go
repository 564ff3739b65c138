package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ironbeetle/TCN-Communications-sub000/internal/config"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/payperiod"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/queue"
	"github.com/Ironbeetle/TCN-Communications-sub000/internal/timesheet"
	"github.com/spf13/cobra"
)

var eventsAMQPURL string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Timesheet lifecycle events",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print lifecycle events as they are published",
	Args:  cobra.NoArgs,
	RunE:  runEventsWatch,
}

func init() {
	eventsWatchCmd.Flags().StringVar(&eventsAMQPURL, "amqp-url", "", "Broker URL (default: amqp_url from secrets.yaml or TCN_AMQP_URL)")
	eventsCmd.AddCommand(eventsWatchCmd)
}

func runEventsWatch(cmd *cobra.Command, args []string) error {
	amqpURL := eventsAMQPURL
	if amqpURL == "" {
		cfg, err := config.LoadLocalConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		amqpURL = cfg.Events.AMQPURL
	}
	if amqpURL == "" {
		return errors.New("no broker configured (set --amqp-url or TCN_AMQP_URL)")
	}

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	consumer := queue.NewConsumer(conn, func(_ context.Context, ev timesheet.Event) error {
		line := fmt.Sprintf("%s  %-9s %s user=%s period=%s total=%.2f",
			ev.OccurredAt.Local().Format("2006-01-02 15:04:05"), ev.Kind, ev.TimesheetID,
			ev.UserID, payperiod.FormatDate(ev.PayPeriodStart), ev.GrandTotal)
		if ev.ActorID != "" {
			line += " by=" + ev.ActorID
		}
		if ev.Reason != "" {
			line += fmt.Sprintf(" reason=%q", ev.Reason)
		}
		fmt.Fprintln(out, line)
		return nil
	}, queue.ConsumerConfig{Workers: 1})

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Watching timesheet events (Ctrl-C to stop)...")

	<-ctx.Done()
	consumer.Stop()
	return nil
}
