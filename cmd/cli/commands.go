package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/careops/reportd/internal/models"
)

func newLoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login and store the API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")

			token, err := apiClient.Login(username, password)
			if err != nil {
				return fmt.Errorf("login failed: %v", err)
			}

			viper.Set("token", token)
			if err := viper.WriteConfig(); err != nil {
				if err := viper.SafeWriteConfig(); err != nil {
					return fmt.Errorf("save token: %v", err)
				}
			}
			fmt.Println("Login successful")
			return nil
		},
	}
	cmd.Flags().String("username", "", "username")
	cmd.Flags().String("password", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newScheduleCommand() *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage report schedules",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List report schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedules, err := apiClient.ListSchedules()
			if err != nil {
				return err
			}
			printSchedules(schedules)
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			schedule, err := apiClient.GetSchedule(id)
			if err != nil {
				return err
			}
			return printJSON(schedule)
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a schedule from JSON on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload map[string]interface{}
			if err := json.NewDecoder(os.Stdin).Decode(&payload); err != nil {
				return fmt.Errorf("invalid schedule JSON: %v", err)
			}
			schedule, err := apiClient.CreateSchedule(payload)
			if err != nil {
				return err
			}
			fmt.Printf("Schedule %d created\n", schedule.ID)
			return nil
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update a schedule from JSON on stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var payload map[string]interface{}
			if err := json.NewDecoder(os.Stdin).Decode(&payload); err != nil {
				return fmt.Errorf("invalid update JSON: %v", err)
			}
			if _, err := apiClient.UpdateSchedule(id, payload); err != nil {
				return err
			}
			fmt.Println("Schedule updated")
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := apiClient.DeleteSchedule(id); err != nil {
				return err
			}
			fmt.Println("Schedule deleted")
			return nil
		},
	}

	enableCmd := &cobra.Command{
		Use:   "enable [id]",
		Short: "Enable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  setActiveRun(true),
	}

	disableCmd := &cobra.Command{
		Use:   "disable [id]",
		Short: "Disable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  setActiveRun(false),
	}

	runCmd := &cobra.Command{
		Use:   "run [id]",
		Short: "Run a schedule immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status, err := apiClient.RunSchedule(id)
			if err != nil {
				return err
			}
			fmt.Printf("Run finished: %s\n", status)
			return nil
		},
	}

	executionsCmd := &cobra.Command{
		Use:   "executions [id]",
		Short: "Show a schedule's execution history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			execs, err := apiClient.ListExecutions(id, limit)
			if err != nil {
				return err
			}
			printExecutions(execs)
			return nil
		},
	}
	executionsCmd.Flags().Int("limit", 20, "maximum executions to show")

	scheduleCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd, enableCmd, disableCmd, runCmd, executionsCmd)
	return scheduleCmd
}

func newTickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Trigger a scheduler tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := apiClient.Tick()
			if err != nil {
				return err
			}
			fmt.Printf("Tick: %d due, %d completed, %d failed, %d skipped\n",
				summary.Due, summary.Completed, summary.Failed, summary.Skipped)
			return nil
		},
	}
}

func setActiveRun(active bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		schedule, err := apiClient.SetScheduleActive(id, active)
		if err != nil {
			return err
		}
		state := "disabled"
		if schedule.Active {
			state = "enabled"
		}
		fmt.Printf("Schedule %d %s\n", schedule.ID, state)
		return nil
	}
}

func printSchedules(schedules []models.ScheduledReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
	fmt.Fprintln(w, "ID\tNAME\tTEMPLATE\tFREQ\tACTIVE\tNEXT RUN\t")
	for _, s := range schedules {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\t%s\t\n",
			s.ID, s.Name, s.TemplateID, s.Rule.Frequency, s.Active, formatTime(s.NextRunAt))
	}
	w.Flush()
}

func printExecutions(execs []models.ReportExecution) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
	fmt.Fprintln(w, "ID\tEXECUTED AT\tSTATUS\tOK\tERROR\t")
	for _, e := range execs {
		ok := "-"
		if e.SuccessfulRecipients != nil {
			ok = strconv.Itoa(*e.SuccessfulRecipients)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t\n",
			e.ID, e.ExecutedAt.Format(time.RFC3339), e.Status, ok, e.ErrorSummary)
	}
	w.Flush()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule ID: %v", err)
	}
	return uint(id), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
