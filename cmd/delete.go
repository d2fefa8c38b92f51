package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adam01140114/WaterData/internal/notify"
	"github.com/Adam01140114/WaterData/internal/repository"
)

var (
	deleteYes bool
	clearYes  bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one reading",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every reading",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "delete without asking")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "clear without asking")
	rootCmd.AddCommand(deleteCmd, clearCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()

		if !deleteYes {
			ok, err := askYesNo(cmd.InOrStdin(), out, notify.MsgConfirmDelete)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, notify.MsgCancelled)
				return nil
			}
		}

		outcome, err := a.repo.Remove(ctx, args[0])
		if err != nil {
			fmt.Fprintln(out, notify.MsgDeleteFailed)
			return err
		}
		if outcome == repository.NotFound {
			return fmt.Errorf("no reading with id %s", args[0])
		}
		fmt.Fprintln(out, notify.MsgDeleted)
		return nil
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()

		if !clearYes {
			ok, err := askYesNo(cmd.InOrStdin(), out, notify.MsgConfirmClear)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, notify.MsgCancelled)
				return nil
			}
		}

		if err := a.repo.ClearAll(ctx); err != nil {
			fmt.Fprintln(out, notify.MsgClearFailed)
			return err
		}
		fmt.Fprintln(out, notify.MsgCleared)
		return nil
	})
}
