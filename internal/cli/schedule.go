package cli

import (
	"github.com/spf13/cobra"

	"desk-sentinel/internal/app"
)

var (
	scheduleID      string
	scheduleTime    string
	scheduleDays    string
	scheduleTarget  string
	scheduleMessage string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage daily ping and brief schedule items",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a schedule item",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ScheduleAddOptions{
			ID:        scheduleID,
			TimeOfDay: scheduleTime,
			DayRule:   scheduleDays,
			Target:    scheduleTarget,
			Message:   scheduleMessage,
		}
		return getApp().ScheduleAdd(cmd.Context(), opts)
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List schedule items",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ScheduleList(cmd.Context())
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a schedule item",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ScheduleRemove(cmd.Context(), scheduleID)
	},
}

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable a schedule item",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ScheduleToggle(cmd.Context(), scheduleID, true)
	},
}

var scheduleDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable a schedule item",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ScheduleToggle(cmd.Context(), scheduleID, false)
	},
}

func init() {
	scheduleAddCmd.Flags().StringVar(&scheduleID, "id", "", "Unique schedule item id")
	scheduleAddCmd.Flags().StringVar(&scheduleTime, "time", "", "Local fire time (HH:MM)")
	scheduleAddCmd.Flags().StringVar(&scheduleDays, "days", "daily", "Day rule: daily|weekdays|weekends|mon..sun")
	scheduleAddCmd.Flags().StringVar(&scheduleTarget, "target", "", "Channel reference used as the message title")
	scheduleAddCmd.Flags().StringVar(&scheduleMessage, "message", "", "Message body; empty composes a brief from recent alerts")

	scheduleRemoveCmd.Flags().StringVar(&scheduleID, "id", "", "Schedule item id")
	scheduleEnableCmd.Flags().StringVar(&scheduleID, "id", "", "Schedule item id")
	scheduleDisableCmd.Flags().StringVar(&scheduleID, "id", "", "Schedule item id")

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleEnableCmd)
	scheduleCmd.AddCommand(scheduleDisableCmd)
}
